package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Provider hands out the session identifier, creating it on first use.
type Provider struct {
	store   Store
	key     string
	newID   func() string
	onError func(error)

	mu sync.Mutex
	id string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithKey sets the storage key. Default: DefaultKey.
func WithKey(key string) ProviderOption {
	return func(p *Provider) {
		p.key = key
	}
}

// WithGenerator replaces the UUID generator.
func WithGenerator(fn func() string) ProviderOption {
	return func(p *Provider) {
		p.newID = fn
	}
}

// WithErrorHandler is called when the store fails. The provider still
// returns an identifier, kept in memory only.
func WithErrorHandler(fn func(error)) ProviderOption {
	return func(p *Provider) {
		p.onError = fn
	}
}

// NewProvider creates a provider backed by store. A nil store uses a
// fresh MemoryStore.
func NewProvider(store Store, opts ...ProviderOption) *Provider {
	if store == nil {
		store = NewMemoryStore()
	}
	p := &Provider{
		store: store,
		key:   DefaultKey,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the session identifier. The first call reads it from the
// store or generates and stores a new one; later calls return the cached
// value. ID never fails: a store error is reported and the identifier is
// kept in memory.
func (p *Provider) ID(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id != "" {
		return p.id
	}

	id, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.report(err)
	}
	if ok && id != "" {
		p.id = id
		return id
	}

	id = p.newID()
	if err := p.store.Set(ctx, p.key, id); err != nil {
		p.report(err)
	}
	p.id = id
	return id
}

// Reset forgets the cached identifier so the next ID call consults the
// store again.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.id = ""
	p.mu.Unlock()
}

// Store returns the underlying store.
func (p *Provider) Store() Store {
	return p.store
}

func (p *Provider) report(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}
