// Package daemon composes the session daemon: lock, store, identity,
// and the HTTP gateway, wired through fx.
package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hoot-im/hoot/internal/auth"
	"github.com/hoot-im/hoot/internal/bus"
	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/config"
	"github.com/hoot-im/hoot/internal/contacts"
	"github.com/hoot-im/hoot/internal/docstore"
	"github.com/hoot-im/hoot/internal/gateway"
	"github.com/hoot-im/hoot/internal/lock"
	"github.com/hoot-im/hoot/internal/logging"
	"github.com/hoot-im/hoot/internal/session"
	"github.com/hoot-im/hoot/internal/status"
	"github.com/hoot-im/hoot/internal/stream"
)

const tokenValidity = 24 * time.Hour

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ListenAddr  string // optional override for testing; empty = use session config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideSessionConfig,
			provideStore,
			provideDirectory,
			provideAuthenticator,
			provideTokens,
			provideMutator,
			provideStreams,
			provideGateway,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideSessionConfig(p Params) (*config.SessionConfig, error) {
	return config.LoadSession(session.SessionConfigPath(p.SessionName))
}

func provideStore(p Params, b *bus.Bus, logger *zap.Logger) (*docstore.DB, error) {
	dbPath := session.StorePath(p.SessionName)
	db, err := docstore.Open(dbPath, b)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideDirectory(p Params, cfg *config.SessionConfig, logger *zap.Logger) (*contacts.Directory, error) {
	path := cfg.ContactsFile
	if path == "" {
		path = session.ContactsPath(p.SessionName)
	}
	return contacts.Load(context.Background(), &contacts.FileProvider{Path: path}, logger)
}

func provideAuthenticator(cfg *config.SessionConfig, b *bus.Bus) (*auth.Memory, *auth.Session) {
	authn := auth.NewMemory(b)
	sess := authn.SignIn(cfg.UserPhone, cfg.DisplayName)
	return authn, sess
}

func provideTokens(cfg *config.SessionConfig, logger *zap.Logger) *auth.Tokens {
	secret := cfg.TokenSecret
	if secret == "" {
		// Ephemeral secret: tokens stop working across restarts, which
		// is acceptable for a daemon that clients re-login to anyway.
		raw := make([]byte, 32)
		_, _ = rand.Read(raw)
		secret = hex.EncodeToString(raw)
		logger.Info("no token_secret configured, using ephemeral secret")
	}
	return auth.NewTokens(secret, "hootd", tokenValidity)
}

func provideMutator(db *docstore.DB, sess *auth.Session, logger *zap.Logger) *chat.Mutator {
	return chat.NewMutator(db, sess, logger)
}

func provideStreams(db *docstore.DB, logger *zap.Logger) *stream.Adapter {
	return stream.NewAdapter(db, logger)
}

func provideGateway(
	p Params,
	cfg *config.SessionConfig,
	logger *zap.Logger,
	tokens *auth.Tokens,
	authn *auth.Memory,
	machine *status.Machine,
	mutator *chat.Mutator,
	streams *stream.Adapter,
	db *docstore.DB,
	dir *contacts.Directory,
) (*gateway.Server, error) {
	addr := p.ListenAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	return gateway.NewServer(addr, logger, tokens, authn, machine, mutator, streams, db, dir)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *gateway.Server,
	lk *lock.Lock,
	db *docstore.DB,
	dir *contacts.Directory,
	machine *status.Machine,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			_ = machine.Transition(status.LoadingContacts)
			logger.Info("contact directory loaded", zap.Int("contacts", dir.Len()))

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gateway server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()

			_ = machine.Transition(status.Ready)
			logger.Info("daemon ready", zap.String("addr", srv.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
