package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Backend drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverPebble = "pebble"
)

// Kafka client drivers
const (
	KafkaDriverKafkaGo = "kafka-go"
	KafkaDriverSarama  = "sarama"
)

// EnvPrefix prefixes every environment override, e.g. STOCKSIM_BACKEND_DRIVER
const EnvPrefix = "STOCKSIM"

// Config represents the application configuration
type Config struct {
	Server struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Engine struct {
		InitialBalance  string           `yaml:"initial_balance"`
		InitialHoldings map[string]int64 `yaml:"initial_holdings"`
	} `yaml:"engine"`

	Backend struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"backend"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
		PoolSize   int    `yaml:"pool_size"`
	} `yaml:"kafka"`

	Otel struct {
		Enabled     bool   `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"otel"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Server.LogLevel = "info"
	cfg.Server.LogFormat = "pretty"
	cfg.Engine.InitialBalance = "10000"
	cfg.Engine.InitialHoldings = map[string]int64{}
	cfg.Backend.Driver = DriverFile
	cfg.Backend.Path = "stock_market.json"
	cfg.Backend.Redis.Addr = "localhost:6379"
	cfg.Backend.Redis.Prefix = "stocksim"
	cfg.Kafka.Driver = KafkaDriverKafkaGo
	cfg.Kafka.BrokerAddr = "localhost:9092"
	cfg.Kafka.Topic = "stocksim-trades"
	cfg.Kafka.PoolSize = 4
	cfg.Otel.Endpoint = "localhost:4317"
	cfg.Otel.ServiceName = "stocksim"
	return cfg
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path and STOCKSIM_* environment variables, in that order. Variables in
// a .env file in the working directory are loaded first; they never replace
// variables already present in the environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debug().Str("path", path).Msg("Loaded configuration file")
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("server.log_level", &cfg.Server.LogLevel)
	str("server.log_format", &cfg.Server.LogFormat)
	str("engine.initial_balance", &cfg.Engine.InitialBalance)
	str("backend.driver", &cfg.Backend.Driver)
	str("backend.path", &cfg.Backend.Path)
	str("backend.redis.addr", &cfg.Backend.Redis.Addr)
	str("backend.redis.password", &cfg.Backend.Redis.Password)
	str("backend.redis.prefix", &cfg.Backend.Redis.Prefix)
	boolean("kafka.enabled", &cfg.Kafka.Enabled)
	str("kafka.driver", &cfg.Kafka.Driver)
	str("kafka.broker_addr", &cfg.Kafka.BrokerAddr)
	str("kafka.topic", &cfg.Kafka.Topic)
	boolean("otel.enabled", &cfg.Otel.Enabled)
	str("otel.endpoint", &cfg.Otel.Endpoint)
	str("otel.service_name", &cfg.Otel.ServiceName)

	if v.IsSet("backend.redis.db") {
		cfg.Backend.Redis.DB = v.GetInt("backend.redis.db")
	}
	if v.IsSet("kafka.pool_size") {
		cfg.Kafka.PoolSize = v.GetInt("kafka.pool_size")
	}
	if v.IsSet("engine.initial_holdings") {
		holdings, err := ParseHoldings(v.GetString("engine.initial_holdings"))
		if err != nil {
			return fmt.Errorf("%s_ENGINE_INITIAL_HOLDINGS: %w", EnvPrefix, err)
		}
		cfg.Engine.InitialHoldings = holdings
	}
	return nil
}

// ParseHoldings parses "XYZ=10,ABC=5" into a holdings map
func ParseHoldings(s string) (map[string]int64, error) {
	holdings := make(map[string]int64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, qty, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("holding %q must be SYMBOL=QTY", part)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("holding %q: %w", part, err)
		}
		holdings[strings.ToUpper(strings.TrimSpace(symbol))] = n
	}
	return holdings, nil
}

// Balance returns the parsed initial balance
func (c *Config) Balance() (fpdecimal.Decimal, error) {
	return fpdecimal.FromString(c.Engine.InitialBalance)
}

func validateConfig(cfg *Config) error {
	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.Server.LogLevel)
	}
	if cfg.Server.LogFormat != "json" && cfg.Server.LogFormat != "pretty" {
		return fmt.Errorf("log_format must be json or pretty, got %q", cfg.Server.LogFormat)
	}

	balance, err := cfg.Balance()
	if err != nil {
		return fmt.Errorf("initial_balance %q: %w", cfg.Engine.InitialBalance, err)
	}
	if balance.LessThan(fpdecimal.Zero) {
		return fmt.Errorf("initial_balance must not be negative")
	}
	for symbol, qty := range cfg.Engine.InitialHoldings {
		if strings.TrimSpace(symbol) == "" {
			return fmt.Errorf("initial_holdings has an empty symbol")
		}
		if qty < 0 {
			return fmt.Errorf("initial_holdings[%s] must not be negative", symbol)
		}
	}

	switch cfg.Backend.Driver {
	case DriverMemory:
	case DriverFile, DriverPebble:
		if cfg.Backend.Path == "" {
			return fmt.Errorf("backend.path must not be empty for driver %s", cfg.Backend.Driver)
		}
	case DriverRedis:
		if cfg.Backend.Redis.Addr == "" {
			return fmt.Errorf("backend.redis.addr must not be empty")
		}
	default:
		return fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}

	if cfg.Kafka.Enabled {
		if cfg.Kafka.Driver != KafkaDriverKafkaGo && cfg.Kafka.Driver != KafkaDriverSarama {
			return fmt.Errorf("unknown kafka driver %q", cfg.Kafka.Driver)
		}
		if cfg.Kafka.BrokerAddr == "" {
			return fmt.Errorf("kafka.broker_addr must not be empty")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic must not be empty")
		}
		if cfg.Kafka.Driver == KafkaDriverSarama && cfg.Kafka.PoolSize <= 0 {
			return fmt.Errorf("kafka.pool_size must be positive")
		}
	}

	if cfg.Otel.Enabled && cfg.Otel.Endpoint == "" {
		return fmt.Errorf("otel.endpoint must not be empty")
	}
	return nil
}
