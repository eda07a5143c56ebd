package ledger

import "context"

// Policy holds the per-scope costing toggles. It is external configuration
// consumed by the costing engine, never stored by the ledger itself.
type Policy struct {
	// AllowNegative permits the running quantity to go below zero.
	// Used for some adjustment kinds; the default policy rejects the
	// movement with InsufficientStock instead. The cost basis of the
	// negative tail carries the last known unit cost forward.
	AllowNegative bool
}

// DefaultPolicy rejects negative stock.
func DefaultPolicy() Policy {
	return Policy{AllowNegative: false}
}

// PolicyResolver answers which policy governs a movement. Implementations
// range from a fixed default to expression-driven resolution per scope.
type PolicyResolver interface {
	Resolve(ctx context.Context, scope Scope, kind Kind) (Policy, error)
}

// StaticResolver resolves every scope to the same policy.
type StaticResolver struct {
	Policy Policy
}

func (r StaticResolver) Resolve(ctx context.Context, scope Scope, kind Kind) (Policy, error) {
	return r.Policy, nil
}
