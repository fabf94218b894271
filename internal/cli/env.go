package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/config"
	"github.com/aretw0/gokernel/pkg/adapters/file"
	"github.com/aretw0/gokernel/pkg/adapters/memory"
	redisstore "github.com/aretw0/gokernel/pkg/adapters/redis"
	"github.com/aretw0/gokernel/pkg/adapters/sqlite"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/observability"
	"github.com/aretw0/gokernel/pkg/persistence/middleware"
	"github.com/aretw0/gokernel/pkg/ports"
	"github.com/aretw0/gokernel/pkg/session"
)

// DefaultStoreDir holds file and sqlite session data unless store.path says otherwise.
const DefaultStoreDir = ".gokernel"

// Env is the wiring shared by every command: configuration, logging,
// session persistence and metrics.
type Env struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    ports.HistoryStore
	Sessions *session.Manager
	Metrics  *observability.Metrics

	closers []func() error
}

// NewEnv builds the environment described by cfg.
func NewEnv(cfg config.Config) (*Env, error) {
	env := &Env{
		Config:  cfg,
		Logger:  createLogger(cfg.LogLevel),
		Metrics: observability.NewMetrics(),
	}

	store, locker, err := env.openStore()
	if err != nil {
		return nil, err
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.Store.EncryptionKey)
		if err != nil {
			_ = env.Close()
			return nil, &domain.ConfigurationError{Reason: "invalid store.encryption_key: " + err.Error()}
		}
		store = middleware.Wrap(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	env.Store = store

	opts := []session.Option{
		session.WithLogger(env.Logger),
		session.WithLockTTL(cfg.SessionLockTTL),
	}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	env.Sessions = session.NewManager(store, opts...)
	return env, nil
}

func (e *Env) openStore() (ports.HistoryStore, ports.SessionLocker, error) {
	sc := e.Config.Store
	switch sc.Kind {
	case config.StoreMemory, "":
		return memory.NewStore(), nil, nil
	case config.StoreFile:
		path := sc.Path
		if path == "" {
			path = filepath.Join(DefaultStoreDir, "sessions")
		}
		return file.New(path), nil, nil
	case config.StoreSQLite:
		path := sc.Path
		if path == "" {
			path = filepath.Join(DefaultStoreDir, "sessions.db")
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		e.closers = append(e.closers, store.Close)
		return store, nil, nil
	case config.StoreRedis:
		var opts []redisstore.Option
		if sc.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(sc.TTL))
		}
		store := redisstore.New(sc.RedisAddr, "", 0, opts...)
		e.closers = append(e.closers, store.Close)
		return store, redisstore.NewLocker(store.Client(), redisstore.DefaultPrefix), nil
	default:
		return nil, nil, &domain.ConfigurationError{Reason: fmt.Sprintf("unknown store kind %q", sc.Kind)}
	}
}

// KernelOptions are the options every kernel of this environment gets.
func (e *Env) KernelOptions() []gokernel.Option {
	return []gokernel.Option{
		gokernel.WithLogger(e.Logger),
		gokernel.WithMetrics(e.Metrics),
	}
}

// NewComposite starts one kernel per built-in language behind a composite
// whose default is language.
func (e *Env) NewComposite(language string) (*gokernel.CompositeKernel, error) {
	var kernels []*gokernel.Kernel
	closeAll := func() {
		for _, k := range kernels {
			_ = k.Close()
		}
	}
	for _, lang := range gokernel.Languages() {
		k, err := gokernel.New(lang, e.KernelOptions()...)
		if err != nil {
			closeAll()
			return nil, err
		}
		kernels = append(kernels, k)
	}
	c, err := gokernel.NewComposite(language, kernels, gokernel.WithCompositeLogger(e.Logger))
	if err != nil {
		closeAll()
		return nil, err
	}
	return c, nil
}

// Kernel returns the kernel for an interactive session. Without a session ID
// it is a composite of all languages; with one it is a single-language
// kernel that records into, and is restored from, the session.
func (e *Env) Kernel(ctx context.Context, language, sessionID string) (gokernel.Interactive, error) {
	if sessionID == "" {
		return e.NewComposite(language)
	}
	return e.Sessions.Factory(language, e.KernelOptions()...)(ctx, sessionID)
}

// Pool returns a session pool for servers.
func (e *Env) Pool(language string) *session.Pool {
	return session.NewPool(e.Sessions.Factory(language, e.KernelOptions()...), session.WithPoolLogger(e.Logger))
}

// Close releases store connections.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
