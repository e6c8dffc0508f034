package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/kirana/domain/entities"
	"github.com/satriahrh/kirana/domain/repositories"
)

const stateDocID = "app_state"

// SessionRepository persists chat sessions and the active session pointer.
// It implements the external persistence collaborator: the core only sees
// Load at startup and Save after mutations.
type SessionRepository struct {
	sessions *mongo.Collection
	state    *mongo.Collection
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{
		sessions: db.Collection("chat_sessions"),
		state:    db.Collection("app_state"),
	}
}

type stateDoc struct {
	ID       string `bson:"_id"`
	ActiveID string `bson:"active_id"`
}

// Load returns every stored session, newest first, plus the active session id
func (r *SessionRepository) Load(ctx context.Context) ([]*entities.ChatSession, string, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]*entities.ChatSession, 0)
	for cursor.Next(ctx) {
		var session entities.ChatSession
		if err := cursor.Decode(&session); err != nil {
			return nil, "", fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := cursor.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate sessions: %w", err)
	}

	var state stateDoc
	err = r.state.FindOne(ctx, bson.M{"_id": stateDocID}).Decode(&state)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, "", fmt.Errorf("failed to load app state: %w", err)
	}

	return sessions, state.ActiveID, nil
}

// Save persists the full session list and the active pointer. The list is
// small (one user's chat history), so a wholesale replace keeps the adapter
// simple and the write atomic enough for this use.
func (r *SessionRepository) Save(ctx context.Context, sessions []*entities.ChatSession, activeID string) error {
	if _, err := r.sessions.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	if len(sessions) > 0 {
		docs := make([]interface{}, len(sessions))
		for i, s := range sessions {
			docs[i] = s
		}
		if _, err := r.sessions.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("failed to save sessions: %w", err)
		}
	}

	_, err := r.state.UpdateOne(ctx,
		bson.M{"_id": stateDocID},
		bson.M{"$set": bson.M{"active_id": activeID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save app state: %w", err)
	}
	return nil
}
