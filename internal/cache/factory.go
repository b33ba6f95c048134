package cache

import (
	"context"
	"errors"
	"fmt"

	"agrohub/internal/storage"
)

// Config selects and configures a cache backend.
type Config struct {
	// Type is one of memory, local, redis or storage (default: memory)
	Type string

	// LocalPath is the JSON file used by the local backend
	LocalPath string

	Redis RedisConfig

	// Storage configures the database used by the storage backend
	Storage storage.Config
}

// Result holds the initialized store and the storage connection it borrows,
// if any. The caller is responsible for calling Close.
type Result struct {
	Store   Store
	Storage storage.Storage
}

// Close releases the store and then its storage connection.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
		r.Store = nil
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.Storage = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates the configured store.
func New(ctx context.Context, cfg Config) (*Result, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return &Result{Store: NewMemoryStore()}, nil

	case TypeLocal:
		store, err := NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		return &Result{Store: store}, nil

	case TypeRedis:
		store, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Result{Store: store}, nil

	case TypeStorage:
		conn, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		store, err := NewWithStorage(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return &Result{Store: store, Storage: conn}, nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: memory, local, redis, storage)", cfg.Type)
	}
}

// NewWithStorage creates the store matching an existing storage connection.
// The caller keeps ownership of conn.
func NewWithStorage(ctx context.Context, conn storage.Storage) (Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("storage is required")
	}
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, conn.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, conn.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBStore(conn.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", conn.Type())
	}
}
