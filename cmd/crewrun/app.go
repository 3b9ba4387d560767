package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/application"
	"github.com/sawpanic/crewrun/internal/assign"
	"github.com/sawpanic/crewrun/internal/cache"
	"github.com/sawpanic/crewrun/internal/config"
	"github.com/sawpanic/crewrun/internal/gates"
	"github.com/sawpanic/crewrun/internal/infrastructure/db"
	"github.com/sawpanic/crewrun/internal/reconcile"
	"github.com/sawpanic/crewrun/internal/remote"
	"github.com/sawpanic/crewrun/internal/store"
)

// app is the wired service plus the optional outbound integrations.
type app struct {
	cfg    *config.Config
	svc    *application.Service
	mirror *db.Manager
	remote *remote.Client
}

type appOptions struct {
	// hooks enables the mirror and remote post-save hooks.
	hooks bool
}

func newApp(ctx context.Context, c *config.Config, opts appOptions) (*app, error) {
	st := store.New(c.Data.Dir, c.BrandList(), c.SeasonAt(time.Now()))
	st.Files = c.Data.Files

	engine := assign.NewEngine(gates.NewSequentialGate(c.Scope()), c.Assign.OneBrandPerMonth)
	viewCache := cache.NewAuto(c.Cache.RedisAddr, c.Cache.Namespace)

	svc := application.New(application.Options{
		Store:      st,
		Engine:     engine,
		Reconciler: reconcile.NewReconciler(),
		Cache:      viewCache,
		CacheTTL:   c.Cache.TTL,
		Hooks:      []application.Hook{application.CacheHook{Cache: viewCache}},
	})
	a := &app{cfg: c, svc: svc}

	mgr, err := db.NewManager(ctx, c.Mirror)
	if err != nil {
		return nil, fmt.Errorf("sql mirror: %w", err)
	}
	a.mirror = mgr

	if c.Remote.Enabled {
		client, err := remote.NewClient(c.Remote, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("remote sync: %w", err)
		}
		a.remote = client
	}

	if opts.hooks {
		if a.mirror.IsEnabled() {
			svc.AddHook(application.MirrorHook{Repo: a.mirror.Repository().Mirror})
		}
		if a.remote != nil {
			svc.AddHook(application.RemoteHook{Client: a.remote})
		}
	}

	log.Debug().
		Str("season", string(st.Season)).
		Bool("mirror", a.mirror.IsEnabled()).
		Bool("remote", a.remote != nil).
		Bool("redis", c.Cache.RedisAddr != "").
		Msg("service ready")
	return a, nil
}

// Close releases the mirror connection.
func (a *app) Close() error {
	if a.mirror == nil {
		return nil
	}
	return a.mirror.Close()
}

// withApp runs fn against a wired app. Mutating commands pass hooks so the
// mirror and remote stay in step with the CSV tables.
func withApp(ctx context.Context, hooks bool, fn func(*app) error) (err error) {
	a, err := newApp(ctx, cfg, appOptions{hooks: hooks})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}
