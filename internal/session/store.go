// Package session persiste o estado de conversa por usuário. O Redis é o
// armazenamento primário com TTL; um arquivo local por usuário serve de
// contingência quando o Redis está fora do ar.
package session

import (
	"context"
	"time"

	"vendazap/pkg/models"
)

// TTL refreshed on every save; idle conversations expire on their own.
const TTL = 6 * time.Hour

// Store persists per-user conversation state. Load always yields a usable
// state: missing or unreadable sessions come back as a fresh default.
type Store interface {
	Load(ctx context.Context, userID string) (*models.ConversationState, error)
	Save(ctx context.Context, userID string, state *models.ConversationState) error
	Clear(ctx context.Context, userID string) error
}
