package purchase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/tenant"
	"produceledger/internal/domain/catalogs/product"
)

// HandlingPolicy decides whether a product is exempt from the loading/unloading charge.
type HandlingPolicy interface {
	Exempt(ctx context.Context, p *product.Product) (bool, error)
}

// RulePolicy exempts waste-category products, unless the tenant configured a CEL rule.
// The rule sees a `product` map with `name` and `is_waste_category`, e.g.
//
//	product.is_waste_category || product.name in ["Rotten", "Sorting Waste"]
type RulePolicy struct {
	env      *cel.Env
	programs sync.Map // rule source -> cel.Program
}

// NewRulePolicy creates the policy and its CEL environment.
func NewRulePolicy() (*RulePolicy, error) {
	env, err := cel.NewEnv(cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &RulePolicy{env: env}, nil
}

// Compile checks that rule is a valid boolean expression.
func (p *RulePolicy) Compile(rule string) (cel.Program, error) {
	if prg, ok := p.programs.Load(rule); ok {
		return prg.(cel.Program), nil
	}
	ast, iss := p.env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation("invalid handling exemption rule").
			WithDetail("rule", rule).
			WithCause(iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, apperror.NewValidation("handling exemption rule must evaluate to a boolean").
			WithDetail("rule", rule)
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build cel program: %w", err)
	}
	p.programs.Store(rule, prg)
	return prg, nil
}

// Exempt implements HandlingPolicy.
func (p *RulePolicy) Exempt(ctx context.Context, prod *product.Product) (bool, error) {
	rule := tenant.SettingsFromContext(ctx).HandlingExemptRule
	if rule == "" {
		return prod.IsWasteCategory, nil
	}
	prg, err := p.Compile(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"product": map[string]any{
			"name":              prod.Name,
			"is_waste_category": prod.IsWasteCategory,
		},
	})
	if err != nil {
		return false, fmt.Errorf("evaluate handling rule: %w", err)
	}
	exempt, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewValidation("handling exemption rule must evaluate to a boolean").
			WithDetail("rule", rule)
	}
	return exempt, nil
}

// WastePolicy exempts waste-category products only.
type WastePolicy struct{}

func (WastePolicy) Exempt(_ context.Context, p *product.Product) (bool, error) {
	return p.IsWasteCategory, nil
}
