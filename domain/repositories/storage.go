package repositories

import (
	"context"

	"github.com/satriahrh/kirana/domain/entities"
)

// SessionRepository is the external persistence collaborator for chat
// sessions. The core only mutates sessions in memory; the integration decides
// when to load and save.
type SessionRepository interface {
	// Load returns every stored session plus the last active session id.
	// An empty store returns an empty slice and no error.
	Load(ctx context.Context) ([]*entities.ChatSession, string, error)
	// Save persists the full session list and the active session pointer
	Save(ctx context.Context, sessions []*entities.ChatSession, activeID string) error
}
