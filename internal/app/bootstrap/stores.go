package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/wolfman30/clinic-booking/internal/accounts"
	"github.com/wolfman30/clinic-booking/internal/appointments"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Store drivers selectable through STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Stores bundles the persistence backends for one driver.
type Stores struct {
	Driver       string
	Accounts     accounts.Repository
	Appointments appointments.Store
	Processed    events.ProcessedTracker
	close        func(context.Context)
}

// Close releases the underlying connections.
func (s *Stores) Close(ctx context.Context) {
	if s != nil && s.close != nil {
		s.close(ctx)
	}
}

// MemoryStores is the single-process backend used by STORE_DRIVER=memory and tests.
func MemoryStores() *Stores {
	return &Stores{
		Driver:       DriverMemory,
		Accounts:     accounts.NewInMemoryRepository(),
		Appointments: appointments.NewInMemoryStore(),
		Processed:    events.NewMemoryProcessedStore(),
	}
}

// BuildStores connects the configured driver.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Warn("using in-memory stores; data is lost on restart")
		return MemoryStores(), nil
	case DriverPostgres, "":
		return buildPostgresStores(ctx, cfg, logger)
	case DriverMongo:
		return buildMongoStores(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func buildPostgresStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres store")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return &Stores{
		Driver:       DriverPostgres,
		Accounts:     accounts.NewPostgresRepository(pool),
		Appointments: appointments.NewPostgresStore(pool),
		Processed:    events.NewPostgresProcessedStore(pool),
		close:        func(context.Context) { pool.Close() },
	}, nil
}

// buildMongoStores needs a replica set: bookings run inside session transactions.
func buildMongoStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("bootstrap: MONGO_URI is required for the mongo store")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect mongo: %w", err)
	}
	disconnect := func(ctx context.Context) { _ = client.Disconnect(ctx) }
	if err := client.Ping(ctx, nil); err != nil {
		disconnect(ctx)
		return nil, fmt.Errorf("bootstrap: ping mongo: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	accountsRepo := accounts.NewMongoRepository(db)
	apptStore := appointments.NewMongoStore(db)
	if err := accountsRepo.EnsureIndexes(ctx); err != nil {
		disconnect(ctx)
		return nil, fmt.Errorf("bootstrap: account indexes: %w", err)
	}
	if err := apptStore.EnsureIndexes(ctx); err != nil {
		disconnect(ctx)
		return nil, fmt.Errorf("bootstrap: appointment indexes: %w", err)
	}
	logger.Info("connected to mongo", "database", cfg.MongoDatabase)
	return &Stores{
		Driver:       DriverMongo,
		Accounts:     accountsRepo,
		Appointments: apptStore,
		Processed:    events.NewMongoProcessedStore(db),
		close:        disconnect,
	}, nil
}
