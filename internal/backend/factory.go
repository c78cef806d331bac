package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	applog "gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/store/csvfile"
	"gastos/internal/store/memory"
	"gastos/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case CSVBackend:
		result = f.createCSVBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(ctx, config, result)

	var opts []services.Option
	if result.Publisher != nil {
		opts = append(opts, services.WithPublisher(result.Publisher))
	}
	result.Service = services.NewExpenseService(result.Backend, opts...)
	result.Cleanup = result.Service.Close

	return result, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) *BackendResult {
	store := csvfile.New(config.CSVPath)

	f.logger.Info("Initialized CSV backend", applog.FieldPath, config.CSVPath)

	return &BackendResult{Backend: store}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", applog.FieldPath, config.SQLiteDBPath)

	return &BackendResult{Backend: sqliteRepo}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &BackendResult{Backend: store}
}

// attachPublisher connects to the broker when one is configured. A broker
// that cannot be reached only disables events.
func (f *DefaultFactory) attachPublisher(ctx context.Context, config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Publisher = client
}
