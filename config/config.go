package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AppName string `mapstructure:"APP_NAME"`
	Env     string `mapstructure:"APP_ENV"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// StorageBackend selects the ledger store: file, mysql or redis.
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	StockFile      string `mapstructure:"STOCK_FILE"`
	MySQLDSN       string `mapstructure:"MYSQL_DSN"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`

	// AMQPURL empty means operator notifications go to the structured log.
	AMQPURL         string `mapstructure:"AMQP_URL"`
	OrderExchange   string `mapstructure:"ORDER_EXCHANGE"`
	OrderRoutingKey string `mapstructure:"ORDER_ROUTING_KEY"`

	// SeedStock is the per-item quantity written on the very first run.
	SeedStock   int `mapstructure:"SEED_STOCK"`
	WorkerCount int `mapstructure:"WORKER_COUNT"`
	QueueSize   int `mapstructure:"QUEUE_SIZE"`
}

func Load(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "flavorshop")
	viper.SetDefault("APP_ENV", "dev")
	viper.SetDefault("HTTP_ADDR", ":8080")

	viper.SetDefault("STORAGE_BACKEND", "file")
	viper.SetDefault("STOCK_FILE", "data/stock.json")
	viper.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/flavorshop?parseTime=true")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("ORDER_EXCHANGE", "orders")
	viper.SetDefault("ORDER_ROUTING_KEY", "order.created")

	viper.SetDefault("SEED_STOCK", 10)
	viper.SetDefault("WORKER_COUNT", 4)
	viper.SetDefault("QUEUE_SIZE", 1024)

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; environment variables and defaults apply.
			err = nil
		} else {
			return
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	err = viper.Unmarshal(&config)
	return
}
