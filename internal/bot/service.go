// Package bot é a máquina de estados da conversa: consome intenções,
// manipula o carrinho e produz as respostas enviadas ao cliente.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"vendazap/internal/catalog"
	"vendazap/internal/fuzzy"
	"vendazap/internal/intent"
	"vendazap/internal/kb"
	"vendazap/internal/session"
	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

const pageSize = 5

// Catalog is the slice of the catalog service the bot consumes.
type Catalog interface {
	ProductByCode(ctx context.Context, code int) (*models.Product, error)
	FindCustomerByCNPJ(ctx context.Context, cnpj string) (*models.Customer, error)
	TopSelling(ctx context.Context, limit, offset int) ([]models.Product, int64, error)
	TopSellingByName(ctx context.Context, name string, limit, offset int) ([]models.Product, int64, error)
	SearchWithSuggestions(ctx context.Context, term string) (*catalog.SearchResult, error)
	RegisterSale(ctx context.Context, items []models.CartItem) error
}

// Knowledge is the learned term index.
type Knowledge interface {
	Lookup(term string) ([]kb.Stub, kb.Quality)
	Learn(term string, product models.Product) error
	Enrich(ctx context.Context, stub kb.Stub) models.Product
}

// Messenger delivers the outbound reply.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
}

// Resolver turns a message into an intent. Never fails: degraded resolution
// comes back as the fallback intent.
type Resolver interface {
	Resolve(ctx context.Context, message string, state *models.ConversationState) *intent.Intent
}

// Service processes one inbound message end to end: load session, handle,
// persist, reply.
type Service struct {
	store     session.Store
	resolver  Resolver
	catalog   Catalog
	kb        Knowledge
	messenger Messenger
	engine    *fuzzy.Engine

	mu        sync.Mutex
	userLocks map[string]*userLockEntry
	lastSweep time.Time
}

func NewService(store session.Store, resolver Resolver, cat Catalog, knowledge Knowledge, messenger Messenger, engine *fuzzy.Engine) *Service {
	return &Service{
		store:     store,
		resolver:  resolver,
		catalog:   cat,
		kb:        knowledge,
		messenger: messenger,
		engine:    engine,
		userLocks: make(map[string]*userLockEntry),
		lastSweep: time.Now(),
	}
}

// Locks de usuários inativos são varridos periodicamente para o mapa não
// crescer para sempre.
const (
	userLockTTL       = 30 * time.Minute
	userLockSweepTick = 5 * time.Minute
)

type userLockEntry struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// acquireUserLock serializes processing per user so two near-simultaneous
// messages can't load-mutate-save over each other.
func (s *Service) acquireUserLock(userID string) *userLockEntry {
	s.mu.Lock()
	entry, ok := s.userLocks[userID]
	if !ok {
		entry = &userLockEntry{}
		s.userLocks[userID] = entry
	}
	entry.refs++
	s.sweepUserLocksLocked(time.Now())
	s.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (s *Service) releaseUserLock(entry *userLockEntry) {
	entry.mu.Unlock()
	s.mu.Lock()
	entry.refs--
	entry.lastUsed = time.Now()
	s.mu.Unlock()
}

// sweepUserLocksLocked drops locks idle past the TTL. Entries with refs > 0
// stay: removing a held lock would let a second goroutine mint a new one for
// the same user.
func (s *Service) sweepUserLocksLocked(now time.Time) {
	if now.Sub(s.lastSweep) < userLockSweepTick {
		return
	}
	s.lastSweep = now
	for id, entry := range s.userLocks {
		if entry.refs == 0 && now.Sub(entry.lastUsed) > userLockTTL {
			delete(s.userLocks, id)
		}
	}
}

// ProcessMessage runs a full conversation turn. Panics from tool handlers
// are caught here: the user gets a generic apology, the error goes into the
// history for inspection, and the session is still saved.
func (s *Service) ProcessMessage(ctx context.Context, userID, text string) {
	entry := s.acquireUserLock(userID)
	defer s.releaseUserLock(entry)

	state, err := s.store.Load(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("❌ Failed to load session, starting fresh")
		state = models.NewConversationState()
	}

	reply := s.safeHandleTurn(ctx, userID, state, text)

	state.AppendHistory("user", text)
	state.AppendHistory("assistant", reply)
	state.CompactHistory()

	if err := s.store.Save(ctx, userID, state); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("❌ Failed to save session")
	}

	if err := s.messenger.SendText(ctx, userID, reply); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("❌ Failed to send reply")
	}
}

func (s *Service) safeHandleTurn(ctx context.Context, userID string, state *models.ConversationState, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("user", userID).
				Str("stack", string(debug.Stack())).Msg("❌ Panic while processing message")
			state.AppendHistory("system", fmt.Sprintf("erro interno: %v", r))
			reply = apologyText()
		}
	}()
	return s.handleTurn(ctx, userID, state, text)
}

// handleTurn routes the message: an open sub-dialogue consumes it first;
// otherwise the intent resolver decides.
func (s *Service) handleTurn(ctx context.Context, userID string, state *models.ConversationState, text string) string {
	if state.Pending != nil {
		switch state.Pending.Kind {
		case models.PendingQuantity:
			return s.handleQuantityReply(ctx, state, text)
		case models.PendingDuplicateDecision:
			return s.handleDuplicateReply(state, text)
		case models.PendingCartItemSelection:
			return s.handleCartSelectionReply(state, text)
		case models.PendingConfirm:
			return s.handleConfirmReply(ctx, userID, state, text)
		}
	}

	return s.dispatch(ctx, userID, state, s.resolver.Resolve(ctx, text, state))
}

func (s *Service) dispatch(ctx context.Context, userID string, state *models.ConversationState, in *intent.Intent) string {
	log.Debug().Str("user", userID).Str("tool", string(in.Tool)).Msg("🛠️ Dispatching intent")

	switch in.Tool {
	case intent.ToolClearCart:
		return s.handleClearCart(state)
	case intent.ToolViewCart:
		return s.handleViewCart(state)
	case intent.ToolCheckout:
		return s.handleCheckout(ctx, state)
	case intent.ToolSearchProducts:
		return s.handleSearch(ctx, state, in.SearchTerm, true)
	case intent.ToolTopSelling:
		return s.handleTopSelling(ctx, state, "", true)
	case intent.ToolTopSellingByName:
		return s.handleTopSelling(ctx, state, in.SearchTerm, true)
	case intent.ToolShowMore:
		return s.handleShowMore(ctx, state)
	case intent.ToolAddItemToCart:
		return s.handleAddItem(ctx, state, in)
	case intent.ToolUpdateCartItem:
		return s.handleUpdateCart(state, in)
	case intent.ToolFindCustomerCNPJ:
		return s.handleFindCustomer(ctx, state, in.CNPJ)
	case intent.ToolStartNewOrder:
		return s.handleStartNewOrder(ctx, userID, state)
	case intent.ToolChitchat:
		return s.handleChitchat(in)
	default:
		return s.handleFallback(state)
	}
}

// handleFallback offers the best sellers behind a yes/no confirmation.
func (s *Service) handleFallback(state *models.ConversationState) string {
	state.Pending = &models.PendingAction{Kind: models.PendingConfirm, ConfirmTool: "show_top_selling"}
	return "Hmm, não entendi muito bem 🤔\n\nQuer dar uma olhada nos produtos *mais vendidos*? Responda *sim* que eu te mostro!"
}

func (s *Service) handleChitchat(in *intent.Intent) string {
	if in.Reply != "" {
		return in.Reply
	}
	return "Estou por aqui! 😊 Me diga o que você procura ou peça para ver os mais vendidos."
}
