package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SHOPCART"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	OrderSink OrderSinkConfig `mapstructure:"order_sink"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig is the gRPC listener of the cart service.
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI                string        `mapstructure:"uri"`
	Database           string        `mapstructure:"database"`
	ProductsCollection string        `mapstructure:"products_collection"`
	OrdersCollection   string        `mapstructure:"orders_collection"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
}

type GatewayConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// OrderSinkConfig selects where placed orders are written: "mongo" or "mysql".
type OrderSinkConfig struct {
	Driver string `mapstructure:"driver"`
}

type CheckoutConfig struct {
	CartKey           string        `mapstructure:"cart_key"`
	WhatsAppHost      string        `mapstructure:"whatsapp_host"`
	WhatsAppRecipient string        `mapstructure:"whatsapp_recipient"`
	CartNoticeTTL     time.Duration `mapstructure:"cart_notice_ttl"`
	OrderNoticeTTL    time.Duration `mapstructure:"order_notice_ttl"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "cart-service")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50053)

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)

	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "shopcart")
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "shopcart")
	v.SetDefault("mongodb.products_collection", "products")
	v.SetDefault("mongodb.orders_collection", "orders")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)

	v.SetDefault("order_sink.driver", "mongo")

	v.SetDefault("checkout.cart_key", "cartItems")
	v.SetDefault("checkout.whatsapp_host", "wa.me")
	v.SetDefault("checkout.whatsapp_recipient", "123456789")
	v.SetDefault("checkout.cart_notice_ttl", 2*time.Second)
	v.SetDefault("checkout.order_notice_ttl", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads configPath and applies SHOPCART_* environment overrides.
// An empty configPath yields defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.OrderSink.Driver {
	case "mongo", "mysql":
	default:
		return fmt.Errorf("unsupported order_sink.driver %q", c.OrderSink.Driver)
	}
	if c.Checkout.CartKey == "" {
		return fmt.Errorf("checkout.cart_key must not be empty")
	}
	if c.Checkout.WhatsAppRecipient == "" {
		return fmt.Errorf("checkout.whatsapp_recipient must not be empty")
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
