package registry

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/fs"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
)

const tokensFile = "tracked_tokens.json"

// Registry holds every chat's tracked tokens in insertion order and
// mirrors each mutation to the store.
type Registry struct {
	mu     sync.RWMutex
	tokens map[int64][]*TrackedToken
	store  *fs.Store // nil keeps the registry in-memory only
}

// persistedTokens is the on-disk layout, one flat list like the
// original transaction data file.
type persistedTokens struct {
	TrackedTokens []*TrackedToken `json:"tracked_tokens"`
	Chats         []int64         `json:"chats"`
}

func NewRegistry(store *fs.Store) *Registry {
	return &Registry{
		tokens: make(map[int64][]*TrackedToken),
		store:  store,
	}
}

// Load reads the persisted registry. A missing file starts empty; a
// malformed one is reported and also starts empty rather than failing
// startup.
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}

	var data persistedTokens
	if err := r.store.LoadJSON(tokensFile, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		log.LogWarn("Tracked tokens file is unreadable, starting with an empty registry", zap.Error(err))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = make(map[int64][]*TrackedToken)
	for _, chatID := range data.Chats {
		if _, ok := r.tokens[chatID]; !ok {
			r.tokens[chatID] = nil
		}
	}
	for _, tok := range data.TrackedTokens {
		if tok == nil || !tok.Chain.Valid() {
			log.LogWarn("Skipping malformed tracked token entry")
			continue
		}
		addr, err := NormalizeAddress(tok.Chain, tok.Address)
		if err != nil {
			log.LogWarn("Skipping tracked token with malformed address",
				zap.String("chain", string(tok.Chain)),
				zap.String("address", tok.Address))
			continue
		}
		tok.Address = addr
		r.tokens[tok.ChatID] = append(r.tokens[tok.ChatID], tok)
	}

	log.LogInfo("Loaded tracked tokens",
		zap.Int("chats", len(r.tokens)),
		zap.Int("tokens", countTokens(r.tokens)))
	return nil
}

func countTokens(m map[int64][]*TrackedToken) int {
	n := 0
	for _, list := range m {
		n += len(list)
	}
	return n
}

// persist must be called with the lock held.
func (r *Registry) persist() error {
	if r.store == nil {
		return nil
	}

	data := persistedTokens{}
	for chatID, list := range r.tokens {
		data.Chats = append(data.Chats, chatID)
		data.TrackedTokens = append(data.TrackedTokens, list...)
	}

	return r.store.SaveJSON(tokensFile, data)
}

// RegisterChat creates an (empty) subscription for a chat. The
// subscription persists even when its token set becomes empty.
func (r *Registry) RegisterChat(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[chatID]; !ok {
		r.tokens[chatID] = nil
		if err := r.persist(); err != nil {
			log.LogWarn("Failed to persist chat registration", zap.Int64("chatID", chatID), zap.Error(err))
		}
	}
}

// Track registers a token for a chat. The address is normalized per
// chain convention before storage.
func (r *Registry) Track(chatID int64, chain Chain, address, name, symbol string, threshold decimal.Decimal) (*TrackedToken, error) {
	if !chain.Valid() {
		return nil, ErrInvalidChain
	}
	addr, err := NormalizeAddress(chain, address)
	if err != nil {
		return nil, err
	}
	if threshold.IsNegative() {
		return nil, ErrInvalidThreshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tok := range r.tokens[chatID] {
		if tok.Chain == chain && tok.Address == addr {
			return nil, ErrAlreadyTracked
		}
	}

	tok := &TrackedToken{
		Chain:           chain,
		Address:         addr,
		Name:            name,
		Symbol:          symbol,
		MinUsdThreshold: threshold,
		ChatID:          chatID,
		AddedAt:         time.Now().UTC(),
	}
	r.tokens[chatID] = append(r.tokens[chatID], tok)

	if err := r.persist(); err != nil {
		log.LogWarn("Failed to persist tracked token", zap.String("address", addr), zap.Error(err))
	}

	added := *tok
	return &added, nil
}

// Untrack removes a token from a chat. The chat subscription itself
// stays registered.
func (r *Registry) Untrack(chatID int64, chain Chain, address string) error {
	if !chain.Valid() {
		return ErrInvalidChain
	}
	addr, err := NormalizeAddress(chain, address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.tokens[chatID]
	for i, tok := range list {
		if tok.Chain == chain && tok.Address == addr {
			r.tokens[chatID] = append(list[:i], list[i+1:]...)
			if err := r.persist(); err != nil {
				log.LogWarn("Failed to persist after untrack", zap.String("address", addr), zap.Error(err))
			}
			return nil
		}
	}
	return ErrNotTracked
}

// List returns a chat's tracked tokens in insertion order.
func (r *Registry) List(chatID int64) []TrackedToken {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.tokens[chatID]
	out := make([]TrackedToken, 0, len(list))
	for _, tok := range list {
		out = append(out, *tok)
	}
	return out
}

// Get returns a single tracked token for a chat.
func (r *Registry) Get(chatID int64, chain Chain, address string) (TrackedToken, bool) {
	addr, err := NormalizeAddress(chain, address)
	if err != nil {
		return TrackedToken{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tok := range r.tokens[chatID] {
		if tok.Chain == chain && tok.Address == addr {
			return *tok, true
		}
	}
	return TrackedToken{}, false
}

// FindTrackers returns the tokens registered for (chain, address) across
// all chats; the dispatcher fans alerts out over them. Each chat keeps
// its own threshold and customization.
func (r *Registry) FindTrackers(chain Chain, address string) []TrackedToken {
	addr, err := NormalizeAddress(chain, address)
	if err != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TrackedToken
	for _, list := range r.tokens {
		for _, tok := range list {
			if tok.Chain == chain && tok.Address == addr {
				out = append(out, *tok)
			}
		}
	}
	return out
}

// Addresses returns the distinct token addresses tracked on a chain
// across all chats, for event monitors to watch.
func (r *Registry) Addresses(chain Chain) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, list := range r.tokens {
		for _, tok := range list {
			if tok.Chain != chain || seen[tok.Address] {
				continue
			}
			seen[tok.Address] = true
			out = append(out, tok.Address)
		}
	}
	return out
}

// SetCustomization attaches presentation overrides to a tracked token.
func (r *Registry) SetCustomization(chatID int64, chain Chain, address string, c Customization) error {
	if !chain.Valid() {
		return ErrInvalidChain
	}
	addr, err := NormalizeAddress(chain, address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tok := range r.tokens[chatID] {
		if tok.Chain == chain && tok.Address == addr {
			custom := c
			tok.Customization = &custom
			if err := r.persist(); err != nil {
				log.LogWarn("Failed to persist customization", zap.String("address", addr), zap.Error(err))
			}
			return nil
		}
	}
	return ErrNotTracked
}

// Count returns the total number of tracked tokens across all chats.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return countTokens(r.tokens)
}

// ChatCount returns the number of registered chats.
func (r *Registry) ChatCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
