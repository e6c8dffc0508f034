package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/entities"
)

// trackingRepo records how many Save calls overlap, which a wholesale-replace
// repository can never tolerate
type trackingRepo struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	saves       int
	lastActive  string
}

func (r *trackingRepo) Load(ctx context.Context) ([]*entities.ChatSession, string, error) {
	return nil, "", nil
}

func (r *trackingRepo) Save(ctx context.Context, sessions []*entities.ChatSession, activeID string) error {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.mu.Unlock()

	// Hold the save open long enough for a concurrent one to show up.
	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.saves++
	r.lastActive = activeID
	r.mu.Unlock()
	return nil
}

func (r *trackingRepo) stats() (saves, maxInFlight int, lastActive string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves, r.maxInFlight, r.lastActive
}

func TestAutosaverSerializesSaves(t *testing.T) {
	logger := zap.NewNop()
	store := NewSessionStore(logger)
	repo := &trackingRepo{}

	saver := NewAutosaver(store, repo, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go saver.Run(ctx)

	session := store.CreateSession()

	// A burst of changes, each triggering a save, the way the store's change
	// callback does.
	const triggers = 20
	var wg sync.WaitGroup
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.AppendMessage(session.ID, entities.NewUserMessage("note to self", nil, entities.ModeNone))
			saver.Trigger()
		}()
	}
	wg.Wait()
	saver.Trigger()

	deadline := time.Now().Add(2 * time.Second)
	for {
		saves, _, lastActive := repo.stats()
		if saves > 0 && lastActive == session.ID {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for a save of the latest state, got %d saves", saves)
		}
		time.Sleep(2 * time.Millisecond)
	}

	saves, maxInFlight, _ := repo.stats()
	if maxInFlight != 1 {
		t.Errorf("Expected saves applied one at a time, saw %d in flight", maxInFlight)
	}
	if saves > triggers+1 {
		t.Errorf("Expected triggers to coalesce, got %d saves for %d triggers", saves, triggers+1)
	}
}
