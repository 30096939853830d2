package core

import (
	"go/types"
	"testing"

	"golang.org/x/tools/go/packages"

	"reqcore/internal/policy"
	"reqcore/internal/schema"
	"reqcore/pkg/domain"
)

// TestBackendImplementationsHardening ensures only sanctioned persistence
// packages provide concrete implementations of the domain.Backend interface.
// This guards architectural drift from introducing additional backends outside
// the vetted locations (memory + sqlite + postgres) without an explicit test
// update.
func TestBackendImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "reqcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var backend *types.Interface
	for _, p := range pkgs {
		if p.PkgPath == "reqcore/pkg/domain" {
			obj := p.Types.Scope().Lookup("Backend")
			if obj == nil {
				t.Fatalf("domain.Backend not found")
			}
			iface, ok := obj.Type().Underlying().(*types.Interface)
			if !ok {
				t.Fatalf("domain.Backend is not an interface")
			}
			backend = iface
		}
	}
	if backend == nil {
		t.Fatalf("failed to resolve Backend interface")
	}
	allowed := map[string]struct{}{
		"reqcore/internal/infra/persistence/memory":   {},
		"reqcore/internal/infra/persistence/sqlite":   {},
		"reqcore/internal/infra/persistence/postgres": {},
		// Test doubles wrapping a real store live in these packages.
		"reqcore/internal/pipeline": {},
		"reqcore/internal/policy":   {},
	}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if types.Implements(types.NewPointer(named), backend) {
				if _, ok := allowed[p.PkgPath]; !ok {
					unexpected = append(unexpected, p.PkgPath+"."+name)
				}
			}
		}
	}
	if len(unexpected) > 0 {
		t.Fatalf("unexpected Backend implementations (update the allowed list intentionally if adding a new backend): %v", unexpected)
	}
}

// TestEveryKindHasPolicyAndSchema keeps the entity model, the schema registry,
// and the policy table in lockstep. Adding a kind to one without the others
// would let mutations through with no validation or no authorization gate.
func TestEveryKindHasPolicyAndSchema(t *testing.T) {
	reg := schema.Default()
	policies := policy.ForKind()
	for _, kind := range domain.EntityTypes() {
		if _, ok := reg.Lookup(kind); !ok {
			t.Errorf("kind %q has no schema definition", kind)
		}
		if _, ok := policies[kind]; !ok {
			t.Errorf("kind %q has no policy", kind)
		}
	}
	for kind := range policies {
		if _, ok := reg.Lookup(kind); !ok {
			t.Errorf("policy registered for %q but no schema definition exists", kind)
		}
	}
}
