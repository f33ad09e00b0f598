package graph

import (
	"context"
	"errors"
	"sync"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
)

// ErrNoIdentityBound is returned when a Binding is used after release or
// after another identity took the slot.
var ErrNoIdentityBound = errors.New("no signing identity bound")

// SharedClient is one long-lived client with a single identity slot. Callers
// must serialize Bind/Release themselves; each Binding only works while it
// owns the slot.
type SharedClient struct {
	client *Client

	mu         sync.Mutex
	signer     RequestSigner
	generation uint64
}

func NewSharedClient(c *Client) *SharedClient {
	return &SharedClient{client: c}
}

// Bind puts signer in the slot, invalidating any earlier Binding.
func (s *SharedClient) Bind(signer RequestSigner) *Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.signer = signer
	return &Binding{shared: s, generation: s.generation}
}

// Bound is the DID currently in the slot, or "".
func (s *SharedClient) Bound() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signer == nil {
		return ""
	}
	return s.signer.DID()
}

// Binding is a Mutator valid from Bind until Release.
type Binding struct {
	shared     *SharedClient
	generation uint64
}

var _ Mutator = (*Binding)(nil)

// Release clears the slot if this binding still owns it.
func (b *Binding) Release() {
	s := b.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == b.generation {
		s.signer = nil
		s.generation++
	}
}

func (b *Binding) current() (RequestSigner, error) {
	s := b.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != b.generation || s.signer == nil {
		return nil, ErrNoIdentityBound
	}
	return s.signer, nil
}

func (b *Binding) Identity() string {
	signer, err := b.current()
	if err != nil {
		return ""
	}
	return signer.DID()
}

func (b *Binding) Execute(ctx context.Context, req Request, out interface{}) error {
	signer, err := b.current()
	if err != nil {
		return errs.Credential(err, "mutation %s attempted outside its credential binding", req.OperationName)
	}
	return b.shared.client.do(ctx, req, out, signer)
}
