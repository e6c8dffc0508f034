package usecase

import (
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain/entities"
)

// SessionStore holds every chat session and the active session pointer in
// memory. It is the single mutable resource shared by the orchestrator and
// the image workflow: all mutations go through an append or a by-id update,
// never a direct index write, so handlers targeting different message ids
// cannot corrupt each other.
type SessionStore struct {
	mu       sync.RWMutex
	sessions []*entities.ChatSession
	activeID string
	onChange func()
	logger   *zap.Logger
}

// NewSessionStore creates an empty store
func NewSessionStore(logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions: make([]*entities.ChatSession, 0),
		logger:   logger,
	}
}

// SetOnChange registers the single change listener. The integration uses it
// to fan out to persistence and connected UI clients. Must be set before the
// store is shared across goroutines.
func (s *SessionStore) SetOnChange(fn func()) {
	s.onChange = fn
}

func (s *SessionStore) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Hydrate replaces the store content with persisted sessions. Intended for
// startup, before any turn runs.
func (s *SessionStore) Hydrate(sessions []*entities.ChatSession, activeID string) {
	s.mu.Lock()
	s.sessions = sessions
	s.activeID = activeID
	if s.activeID == "" && len(sessions) > 0 {
		s.activeID = sessions[0].ID
	}
	s.mu.Unlock()
	s.logger.Info("Session store hydrated",
		zap.Int("sessions", len(sessions)),
		zap.String("activeID", activeID))
}

// CreateSession appends a fresh session and makes it active
func (s *SessionStore) CreateSession() *entities.ChatSession {
	session := entities.NewChatSession()

	s.mu.Lock()
	s.sessions = append([]*entities.ChatSession{session}, s.sessions...)
	s.activeID = session.ID
	s.mu.Unlock()

	s.logger.Info("Session created", zap.String("sessionID", session.ID))
	s.notify()
	return session
}

// SetActive switches the active session pointer
func (s *SessionStore) SetActive(sessionID string) bool {
	s.mu.Lock()
	found := false
	for _, sess := range s.sessions {
		if sess.ID == sessionID {
			found = true
			break
		}
	}
	if found {
		s.activeID = sessionID
	}
	s.mu.Unlock()

	if found {
		s.notify()
	}
	return found
}

// DeleteSession removes a session. Deleting the active session moves the
// pointer to the first remaining session, or clears it.
func (s *SessionStore) DeleteSession(sessionID string) {
	s.mu.Lock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != sessionID {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if s.activeID == sessionID {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	s.mu.Unlock()
	s.notify()
}

// ActiveID returns the active session id, which may be empty
func (s *SessionStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveSession returns the active session, creating one when none exists
func (s *SessionStore) ActiveSession() *entities.ChatSession {
	s.mu.RLock()
	for _, sess := range s.sessions {
		if sess.ID == s.activeID {
			s.mu.RUnlock()
			return sess
		}
	}
	s.mu.RUnlock()
	return s.CreateSession()
}

// Snapshot returns a deep copy of every session plus the active id, safe to
// serialize while turns are in flight.
func (s *SessionStore) Snapshot() ([]*entities.ChatSession, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		clone := *sess
		clone.Messages = make([]entities.Message, len(sess.Messages))
		copy(clone.Messages, sess.Messages)
		for j := range clone.Messages {
			if ig := clone.Messages[j].ImageGen; ig != nil {
				igClone := *ig
				igClone.Images = append([]entities.GeneratedImage(nil), ig.Images...)
				clone.Messages[j].ImageGen = &igClone
			}
		}
		out[i] = &clone
	}
	return out, s.activeID
}

// Messages returns a copy of a session's message list
func (s *SessionStore) Messages(sessionID string) []entities.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.ID == sessionID {
			msgs := make([]entities.Message, len(sess.Messages))
			copy(msgs, sess.Messages)
			return msgs
		}
	}
	return nil
}

// AppendMessage appends a message to a session. When the session is still
// untitled and the message is the first user turn, the title is derived from
// it.
func (s *SessionStore) AppendMessage(sessionID string, msg entities.Message) {
	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.ID != sessionID {
			continue
		}
		if msg.Role == entities.MessageRoleUser && len(sess.Messages) == 0 && sess.IsUntitled() {
			sess.DeriveTitle(msg.Text, msg.Attachments)
		}
		sess.Messages = append(sess.Messages, msg)
		break
	}
	s.mu.Unlock()
	s.notify()
}

// UpdateMessage applies a mutation to the message with the given id and
// reports whether it was found. The mutation runs under the store lock and
// must not block.
func (s *SessionStore) UpdateMessage(sessionID, messageID string, mutate func(*entities.Message)) bool {
	s.mu.Lock()
	found := false
	for _, sess := range s.sessions {
		if sess.ID != sessionID {
			continue
		}
		if i := sess.MessageIndex(messageID); i >= 0 {
			mutate(&sess.Messages[i])
			found = true
		}
		break
	}
	s.mu.Unlock()

	if found {
		s.notify()
	} else {
		s.logger.Warn("Update targeted a missing message",
			zap.String("sessionID", sessionID),
			zap.String("messageID", messageID))
	}
	return found
}

// TruncateBefore removes the message with the given id and everything after
// it, returning the removed head message. Used by edit-and-resubmit.
func (s *SessionStore) TruncateBefore(sessionID, messageID string) (entities.Message, bool) {
	s.mu.Lock()
	var removed entities.Message
	found := false
	for _, sess := range s.sessions {
		if sess.ID != sessionID {
			continue
		}
		if i := sess.MessageIndex(messageID); i >= 0 {
			removed = sess.Messages[i]
			sess.Messages = sess.Messages[:i]
			found = true
		}
		break
	}
	s.mu.Unlock()

	if found {
		s.notify()
	}
	return removed, found
}
