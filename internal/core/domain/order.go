package domain

import "time"

// User identifies the buyer as the transport layer knows them.
type User struct {
	ID          string
	DisplayName string
	Username    string
}

// OrderLine is a validated cart line with its display name resolved.
type OrderLine struct {
	ItemID   ItemID
	Name     string
	Quantity int
}

// Order is the snapshot produced by a successful checkout. It is handed to the
// operator notifier and the audit log, not kept as live state.
type Order struct {
	ID          string
	UserID      string
	DisplayName string
	Username    string
	Lines       []OrderLine
	CreatedAt   time.Time
}

// Total is the number of units across all lines.
func (o Order) Total() int {
	total := 0
	for _, ln := range o.Lines {
		total += ln.Quantity
	}
	return total
}
