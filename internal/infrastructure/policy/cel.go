// Package policy provides scope policy resolution for the ledger.
//
// The allow-negative toggle is external configuration, not ledger state.
// Operators express it as a CEL expression over the scope and movement
// kind, e.g.:
//
//	kind == "adjustment_out"
//	kind in ["adjustment_out", "transfer_out"] && warehouse_id == "..."
//
// A scope/kind pair for which the expression evaluates true is costed with
// the negative-allowed policy.
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"kardex/internal/domain/ledger"
)

// CELResolver evaluates a compiled CEL expression per (scope, kind).
type CELResolver struct {
	program cel.Program
}

var _ ledger.PolicyResolver = (*CELResolver)(nil)

// NewCELResolver compiles the allow-negative expression. The expression
// must produce a boolean.
func NewCELResolver(expr string) (*CELResolver, error) {
	env, err := cel.NewEnv(
		cel.Variable("company_id", cel.StringType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("warehouse_id", cel.StringType),
		cel.Variable("kind", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy expression must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}

	return &CELResolver{program: program}, nil
}

// Resolve evaluates the expression for the scope and kind.
func (r *CELResolver) Resolve(_ context.Context, scope ledger.Scope, kind ledger.Kind) (ledger.Policy, error) {
	out, _, err := r.program.Eval(map[string]any{
		"company_id":   scope.CompanyID.String(),
		"product_id":   scope.ProductID.String(),
		"warehouse_id": scope.WarehouseID.String(),
		"kind":         string(kind),
	})
	if err != nil {
		return ledger.Policy{}, fmt.Errorf("evaluate policy expression: %w", err)
	}

	allow, ok := out.Value().(bool)
	if !ok {
		return ledger.Policy{}, fmt.Errorf("policy expression returned %T, want bool", out.Value())
	}
	return ledger.Policy{AllowNegative: allow}, nil
}
