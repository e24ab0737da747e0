package enrichfake

import (
	"context"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"github.com/schoolcrm/enrichment/internal/core"
)

// Router implements core.ModelRouter with a scripted reply.
type Router struct {
	// Reply produces the response for a request. Nil answers with Content and Model.
	Reply   func(ctx context.Context, req core.ClassifyRequest) (*core.ClassifyResponse, error)
	Content string
	Model   string

	calls    atomic.Int64
	mu       sync.Mutex
	requests []core.ClassifyRequest
}

var _ core.ModelRouter = (*Router)(nil)

// NewRouter answers every request with content from modelName.
func NewRouter(content, modelName string) *Router {
	return &Router{Content: content, Model: modelName}
}

func (r *Router) Classify(ctx context.Context, req core.ClassifyRequest) (*core.ClassifyResponse, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.Reply != nil {
		return r.Reply(ctx, req)
	}
	return &core.ClassifyResponse{Content: r.Content, Model: r.Model}, nil
}

// Calls returns the number of Classify calls.
func (r *Router) Calls() int { return int(r.calls.Load()) }

// Requests returns the requests received so far.
func (r *Router) Requests() []core.ClassifyRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ClassifyRequest(nil), r.requests...)
}

// Embedder implements core.Embedder with deterministic vectors derived from the text.
type Embedder struct {
	ModelName string
	Dims      int
	// Vector overrides the derived vector when set.
	Vector func(text string) ([]float32, error)

	calls atomic.Int64
}

var _ core.Embedder = (*Embedder)(nil)

// NewEmbedder returns an embedder producing 8-dimensional vectors.
func NewEmbedder(modelName string) *Embedder {
	return &Embedder{ModelName: modelName, Dims: 8}
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Vector != nil {
		return e.Vector(text)
	}
	dims := e.Dims
	if dims <= 0 {
		dims = 8
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)])/255 + 0.01
	}
	return vec, nil
}

func (e *Embedder) Model() string { return e.ModelName }

// Calls returns the number of Embed calls.
func (e *Embedder) Calls() int { return int(e.calls.Load()) }
