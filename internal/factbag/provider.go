package factbag

import "context"

// Provider is the parser collaborator's interface: given a checkout path,
// return a complete FactBag. Implementations have no state of their own
// (spec §6.2) — every call is independent.
type Provider interface {
	Extract(ctx context.Context, checkoutPath string) (*FactBag, error)
}

// StaticProvider is a Provider that always returns a fixed FactBag,
// regardless of checkoutPath. Used by `repolex add --fixture`, so the
// core is exercisable without a real (WASM or native) parser binary.
type StaticProvider struct {
	Bag *FactBag
}

func (s StaticProvider) Extract(_ context.Context, _ string) (*FactBag, error) {
	return s.Bag, nil
}

var _ Provider = StaticProvider{}
