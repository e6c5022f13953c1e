package session

import (
	"context"

	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

// FallbackStore tries the primary store on EVERY operation and degrades to
// the fallback only for that single call. Nothing is cached: as soon as the
// primary recovers, the next operation uses it again.
type FallbackStore struct {
	primary  Store
	fallback Store
}

func NewFallbackStore(primary, fallback Store) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback}
}

func (s *FallbackStore) Load(ctx context.Context, userID string) (*models.ConversationState, error) {
	state, err := s.primary.Load(ctx, userID)
	if err == nil {
		return state, nil
	}
	log.Warn().Err(err).Str("user", userID).Msg("⚠️ Primary session store unavailable on load, using fallback")
	return s.fallback.Load(ctx, userID)
}

func (s *FallbackStore) Save(ctx context.Context, userID string, state *models.ConversationState) error {
	if err := s.primary.Save(ctx, userID, state); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("⚠️ Primary session store unavailable on save, using fallback")
		return s.fallback.Save(ctx, userID, state)
	}
	return nil
}

func (s *FallbackStore) Clear(ctx context.Context, userID string) error {
	if err := s.primary.Clear(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("⚠️ Primary session store unavailable on clear, using fallback")
		return s.fallback.Clear(ctx, userID)
	}
	return nil
}
