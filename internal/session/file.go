package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON file per user under a base directory. No TTL:
// stale files must be pruned externally.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// sanitizeUserID keeps the filename filesystem-safe; WhatsApp ids carry
// "@" and "." ("5527999990000@c.us").
func sanitizeUserID(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, sanitizeUserID(userID)+".json")
}

func (s *FileStore) Load(_ context.Context, userID string) (*models.ConversationState, error) {
	data, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return models.NewConversationState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	state := models.NewConversationState()
	if err := json.Unmarshal(data, state); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("⚠️ Corrupt session file, starting fresh")
		return models.NewConversationState(), nil
	}
	return state, nil
}

func (s *FileStore) Save(_ context.Context, userID string, state *models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.WriteFile(s.path(userID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, userID string) error {
	err := os.Remove(s.path(userID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
