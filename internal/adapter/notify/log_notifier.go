package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// LogNotifier writes the order to the structured log instead of a broker.
// Used when no AMQP endpoint is configured, and in tests.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, order domain.Order) error {
	fields := []zap.Field{
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("display_name", order.DisplayName),
		zap.Int("total_units", order.Total()),
	}
	if order.Username != "" {
		fields = append(fields, zap.String("username", order.Username))
	}
	for _, ln := range order.Lines {
		fields = append(fields, zap.Int(ln.ItemID.String(), ln.Quantity))
	}
	n.logger.Info("new order", fields...)
	return nil
}
