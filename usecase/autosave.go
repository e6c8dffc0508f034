package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/repositories"
)

const saveTimeout = 10 * time.Second

// Autosaver persists the session store through a single background worker.
// The repository replaces the stored set wholesale on every save, so saves
// must never overlap; one worker applies them strictly one at a time, and
// triggers arriving during a save coalesce into a single follow-up save.
type Autosaver struct {
	store  *SessionStore
	repo   repositories.SessionRepository
	logger *zap.Logger
	kick   chan struct{}
}

// NewAutosaver creates the autosaver. Run must be started for triggers to
// take effect.
func NewAutosaver(store *SessionStore, repo repositories.SessionRepository, logger *zap.Logger) *Autosaver {
	return &Autosaver{
		store:  store,
		repo:   repo,
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Trigger schedules a save. Never blocks; the snapshot is taken when the
// worker gets to it, so the latest store state always wins.
func (a *Autosaver) Trigger() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run drives the save worker until the context is cancelled
func (a *Autosaver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.kick:
			a.save(ctx)
		}
	}
}

func (a *Autosaver) save(ctx context.Context) {
	sessions, activeID := a.store.Snapshot()
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := a.repo.Save(saveCtx, sessions, activeID); err != nil {
		a.logger.Warn("Failed to persist sessions", zap.Error(err))
	}
}
