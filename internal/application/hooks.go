package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/cache"
	"github.com/sawpanic/crewrun/internal/persistence"
	"github.com/sawpanic/crewrun/internal/remote"
)

// CacheHook drops rendered views after a change.
type CacheHook struct {
	Cache cache.Cache
}

func (h CacheHook) AfterSave(ctx context.Context, _ Change) error {
	return h.Cache.Purge(ctx, ViewPrefix)
}

// MirrorHook copies the saved snapshot into the SQL mirror.
type MirrorHook struct {
	Repo persistence.MirrorRepo
}

func (h MirrorHook) AfterSave(ctx context.Context, c Change) error {
	if c.Snapshot == nil {
		return nil
	}
	if err := h.Repo.Replace(ctx, persistence.FromSnapshot(c.Snapshot)); err != nil {
		return fmt.Errorf("mirror %s: %w", c.Kind, err)
	}
	log.Debug().Str("revision", c.Revision).Msg("mirrored snapshot")
	return nil
}

// RemoteHook pushes the written files to the remote repository. Files whose
// content already matches are skipped by the client.
type RemoteHook struct {
	Client *remote.Client
}

func (h RemoteHook) AfterSave(ctx context.Context, c Change) error {
	if len(c.Paths) == 0 {
		return nil
	}
	_, err := h.Client.Push(ctx, c.Paths, fmt.Sprintf("crewrun: %s (%d)", c.Kind, c.Count))
	return err
}
