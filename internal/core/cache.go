// Package core defines the ports of the enrichment pipeline and the services
// that sit directly on top of them.
package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// CacheRepository defines the interface for key/value caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// IntentCacheService implements IntentCache as a read-through layer: the
// Postgres table is authoritative and an optional CacheRepository holds hot entries.
type IntentCacheService struct {
	store     IntentCacheRepository
	cache     CacheRepository
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// IntentCacheConfig holds configuration for the read-through layer.
type IntentCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// IntentCacheServiceOptions bundles dependencies for NewIntentCacheService.
type IntentCacheServiceOptions struct {
	Store  IntentCacheRepository // required
	Cache  CacheRepository       // optional
	Config IntentCacheConfig
	Logger *slog.Logger
}

// DefaultIntentCacheConfig returns an IntentCacheConfig with sensible defaults.
func DefaultIntentCacheConfig() IntentCacheConfig {
	return IntentCacheConfig{
		TTL:       24 * time.Hour,
		KeyPrefix: "enrichment:intent:",
	}
}

// NewIntentCacheService creates a new IntentCacheService.
func NewIntentCacheService(opts IntentCacheServiceOptions) *IntentCacheService {
	cfg := opts.Config
	def := DefaultIntentCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentCacheService{
		store:     opts.Store,
		cache:     opts.Cache,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger.With("component", "intent_cache"),
	}
}

var _ IntentCache = (*IntentCacheService)(nil)

// Lookup returns the cached classification for textHash, or nil on a miss.
// Redis failures fall back to the table.
func (s *IntentCacheService) Lookup(ctx context.Context, textHash string) (*model.IntentCacheEntry, error) {
	if textHash == "" {
		return nil, nil
	}

	if entry := s.fromCache(ctx, textHash); entry != nil {
		s.recordHit(ctx, textHash)
		return entry, nil
	}

	entry, err := s.store.Get(ctx, textHash)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	s.toCache(ctx, entry)
	s.recordHit(ctx, textHash)
	return entry, nil
}

// Contains reports whether textHash is cached. It does not count as a hit.
func (s *IntentCacheService) Contains(ctx context.Context, textHash string) (bool, error) {
	if textHash == "" {
		return false, nil
	}
	if s.fromCache(ctx, textHash) != nil {
		return true, nil
	}
	entry, err := s.store.Get(ctx, textHash)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Upsert writes entry to the table and refreshes the hot copy.
func (s *IntentCacheService) Upsert(ctx context.Context, entry *model.IntentCacheEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return err
	}
	s.toCache(ctx, entry)
	return nil
}

// Invalidate drops the hot copy for textHash. The table row is kept.
func (s *IntentCacheService) Invalidate(ctx context.Context, textHash string) error {
	if s.cache == nil || textHash == "" {
		return nil
	}
	_, err := s.cache.Delete(ctx, s.key(textHash))
	return err
}

func (s *IntentCacheService) fromCache(ctx context.Context, textHash string) *model.IntentCacheEntry {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.key(textHash))
	if err != nil {
		s.logger.WarnContext(ctx, "intent cache read failed, falling back to store", "text_hash", textHash, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var entry model.IntentCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable intent cache value", "text_hash", textHash, "error", err)
		return nil
	}
	return &entry
}

func (s *IntentCacheService) toCache(ctx context.Context, entry *model.IntentCacheEntry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.key(entry.TextHash), raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "intent cache write failed", "text_hash", entry.TextHash, "error", err)
	}
}

func (s *IntentCacheService) recordHit(ctx context.Context, textHash string) {
	if err := s.store.IncrementHits(ctx, textHash); err != nil {
		s.logger.DebugContext(ctx, "increment intent cache hits failed", "text_hash", textHash, "error", err)
	}
}

func (s *IntentCacheService) key(textHash string) string {
	return s.keyPrefix + textHash
}
