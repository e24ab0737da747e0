// Package enrichfake provides in-memory implementations of the enrichment
// ports for unit tests. All fakes are safe for concurrent use.
package enrichfake

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// Messages implements core.MessageRepository.
type Messages struct {
	mu   sync.Mutex
	byID map[string]*model.Message
}

var _ core.MessageRepository = (*Messages)(nil)

// NewMessages returns an empty message store.
func NewMessages() *Messages { return &Messages{byID: map[string]*model.Message{}} }

// Add stores a message with the given content.
func (m *Messages) Add(orgID, id, content string) *model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := content
	msg := &model.Message{ID: id, OrganizationID: orgID, Content: &c, CreatedAt: time.Now().UTC()}
	m.byID[id] = msg
	return msg
}

func (m *Messages) GetByID(_ context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

// Texts implements core.NormalizedTextRepository.
type Texts struct {
	mu      sync.Mutex
	byID    map[string]*model.NormalizedText
	Upserts int
}

var _ core.NormalizedTextRepository = (*Texts)(nil)

// NewTexts returns an empty normalized text store.
func NewTexts() *Texts { return &Texts{byID: map[string]*model.NormalizedText{}} }

// Put stores nt directly, bypassing the upsert counter.
func (s *Texts) Put(nt *model.NormalizedText) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *nt
	s.byID[nt.MessageID] = &cp
}

func (s *Texts) Upsert(_ context.Context, nt *model.NormalizedText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *nt
	now := time.Now().UTC()
	if prev, ok := s.byID[nt.MessageID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.byID[nt.MessageID] = &cp
	s.Upserts++
	return nil
}

func (s *Texts) Get(_ context.Context, messageID string) (*model.NormalizedText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nt, ok := s.byID[messageID]
	if !ok {
		return nil, nil
	}
	cp := *nt
	return &cp, nil
}

func (s *Texts) GetMany(_ context.Context, messageIDs []string) (map[string]*model.NormalizedText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*model.NormalizedText, len(messageIDs))
	for _, id := range messageIDs {
		if nt, ok := s.byID[id]; ok {
			cp := *nt
			out[id] = &cp
		}
	}
	return out, nil
}

// Embeddings implements core.EmbeddingRepository.
type Embeddings struct {
	mu      sync.Mutex
	vectors map[model.EmbeddingKey][]float32
	// OrgOf maps an entity id to its organization for Nearest. Nil disables the filter.
	OrgOf   func(entityID string) string
	Inserts int
}

var _ core.EmbeddingRepository = (*Embeddings)(nil)

// NewEmbeddings returns an empty embedding store.
func NewEmbeddings() *Embeddings { return &Embeddings{vectors: map[model.EmbeddingKey][]float32{}} }

// Put stores a vector directly, bypassing the insert counter.
func (s *Embeddings) Put(key model.EmbeddingKey, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[key] = append([]float32(nil), vec...)
}

// Len returns the number of stored vectors.
func (s *Embeddings) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vectors)
}

func (s *Embeddings) Exists(_ context.Context, key model.EmbeddingKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.vectors[key]
	return ok, nil
}

func (s *Embeddings) Insert(_ context.Context, e *model.Embedding) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vectors[e.EmbeddingKey]; ok {
		return false, nil
	}
	s.vectors[e.EmbeddingKey] = append([]float32(nil), e.Vector...)
	s.Inserts++
	return true, nil
}

func (s *Embeddings) Nearest(_ context.Context, key model.EmbeddingKey, limit int) ([]model.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.vectors[key]
	if !ok || limit <= 0 {
		return nil, nil
	}
	var out []model.Neighbor
	for k, v := range s.vectors {
		if k.EntityType != key.EntityType || k.ModelName != key.ModelName || k.EntityID == key.EntityID {
			continue
		}
		if len(v) != len(src) {
			continue
		}
		if s.OrgOf != nil && s.OrgOf(k.EntityID) != s.OrgOf(key.EntityID) {
			continue
		}
		out = append(out, model.Neighbor{EntityID: k.EntityID, Similarity: cosine(src, v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type annotationKey struct {
	entityType, entityID, annotationType string
}

// Annotations implements core.AnnotationRepository.
type Annotations struct {
	mu     sync.Mutex
	byKey  map[annotationKey]*model.Annotation
	Writes int
}

var _ core.AnnotationRepository = (*Annotations)(nil)

// NewAnnotations returns an empty annotation store.
func NewAnnotations() *Annotations { return &Annotations{byKey: map[annotationKey]*model.Annotation{}} }

func (s *Annotations) Upsert(_ context.Context, a *model.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Value = append(json.RawMessage(nil), a.Value...)
	if cp.Version == 0 {
		cp.Version = model.AnnotationVersion
	}
	s.byKey[annotationKey{a.EntityType, a.EntityID, a.AnnotationType}] = &cp
	s.Writes++
	return nil
}

func (s *Annotations) Get(_ context.Context, entityType, entityID, annotationType string) (*model.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[annotationKey{entityType, entityID, annotationType}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// Len returns the number of stored annotations.
func (s *Annotations) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// IntentCache implements core.IntentCache and core.IntentCacheRepository.
type IntentCache struct {
	mu      sync.Mutex
	byHash  map[string]*model.IntentCacheEntry
	Lookups int
	Hits    int
	Upserts int
}

var (
	_ core.IntentCache           = (*IntentCache)(nil)
	_ core.IntentCacheRepository = (*IntentCache)(nil)
)

// NewIntentCache returns an empty cache.
func NewIntentCache() *IntentCache {
	return &IntentCache{byHash: map[string]*model.IntentCacheEntry{}}
}

// Put stores an entry directly, bypassing the upsert counter.
func (c *IntentCache) Put(e *model.IntentCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	c.byHash[e.TextHash] = &cp
}

func (c *IntentCache) Lookup(_ context.Context, textHash string) (*model.IntentCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Lookups++
	e, ok := c.byHash[textHash]
	if !ok {
		return nil, nil
	}
	c.Hits++
	e.HitCount++
	cp := *e
	return &cp, nil
}

func (c *IntentCache) Contains(_ context.Context, textHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byHash[textHash]
	return ok, nil
}

func (c *IntentCache) Upsert(_ context.Context, e *model.IntentCacheEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	if prev, ok := c.byHash[e.TextHash]; ok {
		cp.HitCount = prev.HitCount
	}
	c.byHash[e.TextHash] = &cp
	c.Upserts++
	return nil
}

func (c *IntentCache) Get(_ context.Context, textHash string) (*model.IntentCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[textHash]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (c *IntentCache) IncrementHits(_ context.Context, textHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byHash[textHash]; ok {
		e.HitCount++
	}
	return nil
}

// Entry returns a copy of the entry for textHash, or nil.
func (c *IntentCache) Entry(textHash string) *model.IntentCacheEntry {
	e, _ := c.Get(context.Background(), textHash)
	return e
}
