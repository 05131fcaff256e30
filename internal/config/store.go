package config

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/ferry/pkg/adapters/file"
	"github.com/aretw0/ferry/pkg/adapters/memory"
	"github.com/aretw0/ferry/pkg/adapters/redis"
	"github.com/aretw0/ferry/pkg/adapters/sqlite"
	"github.com/aretw0/ferry/pkg/persistence/middleware"
	"github.com/aretw0/ferry/pkg/ports"
)

// Storage is an opened history backend with its middlewares applied.
type Storage struct {
	Store ports.EntryStore
	// Locker is set for backends shared between processes.
	Locker ports.DistributedLocker

	closer io.Closer
}

// Close releases the backend connection, if any.
func (s *Storage) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenHistory opens the configured backend. Redaction runs before
// encryption, so masked values never reach the ciphertext.
func OpenHistory(h HistoryConfig) (*Storage, error) {
	st := &Storage{}

	switch h.Backend {
	case "", BackendMemory:
		st.Store = memory.NewStore()
	case BackendFile:
		st.Store = file.New(h.Path)
	case BackendSQLite:
		path := h.Path
		if path == "" {
			path = filepath.Join(".ferry", "history.db")
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}
		st.Store, st.closer = db, db
	case BackendRedis:
		var opts []redis.Option
		if h.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(h.Redis.Prefix))
		}
		if h.Redis.TTL.Duration > 0 {
			opts = append(opts, redis.WithTTL(h.Redis.TTL.Duration))
		}
		rs := redis.New(h.Redis.Addr, h.Redis.Password, h.Redis.DB, opts...)
		st.Store, st.closer = rs, rs
		st.Locker = redis.NewLocker(rs.Client(), h.Redis.Prefix)
	default:
		return nil, fmt.Errorf("unknown history backend %q", h.Backend)
	}

	var mws []middleware.Middleware
	if len(h.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(h.Redact))
	}
	active, fallback, err := h.Keys()
	if err != nil {
		st.Close()
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	st.Store = middleware.Chain(st.Store, mws...)
	return st, nil
}
