// Ininicializing common application configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Events    EventsConfig    `mapstructure:"events"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

type ServerConfig struct {
	AppVersion  string        `mapstructure:"app_version"`
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Env         string        `mapstructure:"environment"`
	Mode        string        `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig describes how identity tokens issued by the identity provider are verified
type AuthConfig struct {
	Secret               string `mapstructure:"secret"`
	Issuer               string `mapstructure:"issuer"`
	Audience             string `mapstructure:"audience"`
	RequireVerifiedEmail bool   `mapstructure:"require_verified_email"`
}

type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

type BookingConfig struct {
	MaxSeats                   int           `mapstructure:"max_seats"`
	SessionTTL                 time.Duration `mapstructure:"session_ttl"`
	SeatHoldTTL                time.Duration `mapstructure:"seat_hold_ttl"` // 0 выключает удержание мест
	Availability               float64       `mapstructure:"availability"`
	ConvenienceFeeBase         float64       `mapstructure:"convenience_fee_base"`
	ConvenienceFeePerPassenger float64       `mapstructure:"convenience_fee_per_passenger"`
}

type WorkerConfig struct {
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	ReminderWindow   time.Duration `mapstructure:"reminder_window"`
}

type QueueConfig struct {
	Name       string        `mapstructure:"name"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// EventsConfig selects the broker for booking events: kafka, rabbitmq or none
type EventsConfig struct {
	Driver   string         `mapstructure:"driver"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	Enabled  bool   `mapstructure:"enabled"`
}

type AssistantConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether the prompt-completion service is configured
func (c AssistantConfig) Enabled() bool {
	return c.APIKey != "" && c.BaseURL != ""
}

// BindFlags registers command line flags; --config overrides the config file path
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "./config/config.yaml", "path to the YAML config file")
	fs.String("server.port", "", "HTTP port")
	fs.String("log.level", "", "log level (debug, info, warn, error)")
}

func LoadConfig(fs *pflag.FlagSet) (*viper.Viper, error) {
	// .env is optional
	_ = godotenv.Load()

	viperInstance := viper.New()
	setDefaults(viperInstance)

	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	if fs != nil {
		if err := viperInstance.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	path := viperInstance.GetString("config")
	if path == "" {
		viperInstance.AddConfigPath("./config")
		viperInstance.SetConfigName("config")
		viperInstance.SetConfigType("yaml")
	} else {
		viperInstance.SetConfigFile(path)
	}

	if err := viperInstance.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("log.level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "railbook")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "railbook")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)

	// empty defaults make these keys visible to AutomaticEnv on Unmarshal
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.require_verified_email", false)

	v.SetDefault("catalog.seed_file", "./config/trains.yaml")

	// Booking defaults
	v.SetDefault("booking.max_seats", 6)
	v.SetDefault("booking.session_ttl", 30*time.Minute)
	v.SetDefault("booking.seat_hold_ttl", 10*time.Minute)
	v.SetDefault("booking.availability", 0.7)
	v.SetDefault("booking.convenience_fee_base", 20.0)
	v.SetDefault("booking.convenience_fee_per_passenger", 11.80)

	// Worker defaults
	v.SetDefault("worker.reminder_interval", 5*time.Minute)
	v.SetDefault("worker.reminder_window", 24*time.Hour)

	v.SetDefault("queue.name", "railbook:tasks")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.base_delay", 5*time.Second)

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "booking-events")
	v.SetDefault("events.rabbitmq.url", "")
	v.SetDefault("events.rabbitmq.exchange", "railbook.bookings")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")

	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.timeout", 30*time.Second)
}
