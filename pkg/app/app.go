// Package app wires configuration into the concrete backends, publishers and
// telemetry used by the command line tools.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/erain9/stocksim/config"
	"github.com/erain9/stocksim/pkg/backend/file"
	"github.com/erain9/stocksim/pkg/backend/memory"
	pebblebackend "github.com/erain9/stocksim/pkg/backend/pebble"
	redisbackend "github.com/erain9/stocksim/pkg/backend/redis"
	"github.com/erain9/stocksim/pkg/core"
	"github.com/erain9/stocksim/pkg/db/queue"
	"github.com/erain9/stocksim/pkg/logging"
	"github.com/erain9/stocksim/pkg/messaging"
	"github.com/erain9/stocksim/pkg/messaging/kafka"
	"github.com/erain9/stocksim/pkg/otel"
	"github.com/erain9/stocksim/pkg/simulator"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
)

// SetupLogging configures the global zerolog logger from cfg
func SetupLogging(cfg *config.Config) {
	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stderr,
	})
}

// SetupTelemetry initializes tracing and metrics. The returned function
// flushes and shuts the providers down.
func SetupTelemetry(cfg *config.Config) (func(), error) {
	return otel.Init(otel.Config{
		ServiceName:      cfg.Otel.ServiceName,
		Endpoint:         cfg.Otel.Endpoint,
		CollectorEnabled: cfg.Otel.Enabled,
		RuntimeMetrics:   cfg.Otel.Enabled,
	})
}

// OpenBackend creates the snapshot store selected by cfg.Backend.Driver
func OpenBackend(ctx context.Context, cfg *config.Config) (core.Backend, error) {
	switch cfg.Backend.Driver {
	case config.DriverMemory:
		return memory.NewMemoryBackend(), nil
	case config.DriverFile:
		return file.NewFileBackend(cfg.Backend.Path), nil
	case config.DriverPebble:
		b, err := pebblebackend.NewPebbleBackend(cfg.Backend.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverRedis:
		client := redisbackend.NewRedisClient(redisbackend.RedisOptions{
			Addr:     cfg.Backend.Redis.Addr,
			Password: cfg.Backend.Redis.Password,
			DB:       cfg.Backend.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Backend.Redis.Addr, err)
		}
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		return redisbackend.NewRedisBackend(client, cfg.Backend.Redis.Prefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

// OpenSender creates the trade publisher selected by cfg.Kafka. A disabled
// publisher drops every message.
func OpenSender(cfg *config.Config) (messaging.MessageSender, error) {
	if !cfg.Kafka.Enabled {
		return messaging.NoopSender{}, nil
	}

	switch cfg.Kafka.Driver {
	case config.KafkaDriverKafkaGo:
		sender, err := kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case config.KafkaDriverSarama:
		brokers := strings.Split(cfg.Kafka.BrokerAddr, ",")
		pool, err := queue.NewSenderPool(cfg.Kafka.PoolSize, func() (messaging.MessageSender, error) {
			s, err := queue.NewQueueMessageSender(brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
		if err != nil {
			return nil, err
		}
		return pool, nil
	default:
		return nil, fmt.Errorf("unknown kafka driver %q", cfg.Kafka.Driver)
	}
}

// NewSimulator opens the configured backend and publisher and restores
// the session from them.
func NewSimulator(ctx context.Context, cfg *config.Config) (*simulator.Simulator, error) {
	balance, err := cfg.Balance()
	if err != nil {
		return nil, fmt.Errorf("initial balance: %w", err)
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sender, err := OpenSender(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sim, err := simulator.New(ctx, backend, sender, simulator.Options{
		InitialBalance:  balance,
		InitialHoldings: cfg.Engine.InitialHoldings,
	})
	if err != nil {
		sender.Close()
		backend.Close()
		return nil, err
	}

	log.Debug().
		Str("backend", cfg.Backend.Driver).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Simulator ready")
	return sim, nil
}
