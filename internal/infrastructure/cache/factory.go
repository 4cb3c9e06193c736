package cache

import (
	"fmt"

	"github.com/erp/docengine/internal/domain/document"
	"github.com/erp/docengine/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AllocatorFactory picks the sequence allocator named by the configured strategy
type AllocatorFactory struct {
	strategy string
	database document.SequenceAllocator
	client   redis.Scripter
	seed     SeedSource
	logger   *zap.Logger
}

// AllocatorFactoryOption is a functional option for configuring the factory
type AllocatorFactoryOption func(*AllocatorFactory)

// WithLogger sets the logger for the factory and the allocators it creates
func WithLogger(logger *zap.Logger) AllocatorFactoryOption {
	return func(f *AllocatorFactory) {
		f.logger = logger
	}
}

// WithRedis makes the redis strategy available. seed restores missing counters.
func WithRedis(client redis.Scripter, seed SeedSource) AllocatorFactoryOption {
	return func(f *AllocatorFactory) {
		f.client = client
		f.seed = seed
	}
}

// NewAllocatorFactory creates a factory; database serves the database strategy
func NewAllocatorFactory(strategy string, database document.SequenceAllocator, opts ...AllocatorFactoryOption) *AllocatorFactory {
	f := &AllocatorFactory{
		strategy: strategy,
		database: database,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the allocator for the configured strategy
func (f *AllocatorFactory) Create() (document.SequenceAllocator, error) {
	switch f.strategy {
	case config.SequenceStrategyDatabase, "":
		if f.database == nil {
			return nil, fmt.Errorf("database sequence strategy needs a database allocator")
		}
		f.logger.Info("Using database sequence allocator")
		return f.database, nil
	case config.SequenceStrategyRedis:
		if f.client == nil || f.seed == nil {
			return nil, fmt.Errorf("redis sequence strategy needs a Redis client and a seed source")
		}
		f.logger.Info("Using Redis sequence allocator")
		return NewRedisSequenceAllocator(f.client, f.seed, f.logger), nil
	default:
		return nil, fmt.Errorf("unknown sequence strategy %q", f.strategy)
	}
}
