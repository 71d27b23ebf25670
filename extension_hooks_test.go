package issuer

import (
	"context"
	"slices"
	"testing"

	"github.com/goliatone/go-issuer/core"
	"github.com/goliatone/go-issuer/rules"
)

func TestExtensionHooks_RegisterAndApplyAttestationSourcePacks(t *testing.T) {
	hooks := NewExtensionHooks()
	pack := AttestationSourcePack{
		Name: "downstream-pack",
		Factories: map[string]core.AttestationSourceFactory{
			"membership_api": staticSourceFactory(map[string]any{"member": true}),
		},
	}
	if err := hooks.RegisterAttestationSourcePack(pack); err != nil {
		t.Fatalf("register attestation pack: %v", err)
	}
	if err := hooks.RegisterAttestationSourcePack(pack); err == nil {
		t.Fatalf("expected duplicate attestation pack registration error")
	}

	registry := core.NewAttestationSourceRegistry()
	if err := hooks.ApplyAttestationSourcePacks(registry); err != nil {
		t.Fatalf("apply attestation packs: %v", err)
	}
	factory, ok := registry.Factory("membership_api")
	if !ok {
		t.Fatalf("expected attestation pack registration in registry")
	}
	source, err := factory.CreateSource(core.AttestationDefinition{ID: "att-1", AttestationType: "membership_api"})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	claims, err := source.Execute(context.Background(), core.AttestationContext{})
	if err != nil {
		t.Fatalf("execute source: %v", err)
	}
	if claims["member"] != true {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestExtensionHooks_LaterPackWinsForSharedType(t *testing.T) {
	hooks := NewExtensionHooks()
	for _, pack := range []AttestationSourcePack{
		{Name: "pack_b", Factories: map[string]core.AttestationSourceFactory{"shared": staticSourceFactory(map[string]any{"from": "b"})}},
		{Name: "pack_a", Factories: map[string]core.AttestationSourceFactory{"shared": staticSourceFactory(map[string]any{"from": "a"})}},
	} {
		if err := hooks.RegisterAttestationSourcePack(pack); err != nil {
			t.Fatalf("register %s: %v", pack.Name, err)
		}
	}

	registry := core.NewAttestationSourceRegistry()
	if err := hooks.ApplyAttestationSourcePacks(registry); err != nil {
		t.Fatalf("apply: %v", err)
	}
	factory, _ := registry.Factory("shared")
	source, _ := factory.CreateSource(core.AttestationDefinition{})
	claims, _ := source.Execute(context.Background(), core.AttestationContext{})
	if claims["from"] != "b" {
		t.Fatalf("expected pack_b to be applied last, got %#v", claims)
	}
	if types := hooks.AttestationTypes(); !slices.Equal(types, []string{"shared"}) {
		t.Fatalf("unexpected attestation types %v", types)
	}
}

func TestExtensionHooks_RulePacksRegisterIntoEngine(t *testing.T) {
	hooks := NewExtensionHooks()
	err := hooks.RegisterRulePack(RulePack{
		Name: "custom-rules",
		Factories: map[string]rules.Factory{
			"always.pass": func(map[string]any) (rules.Rule, error) { return passRule{}, nil },
		},
	})
	if err != nil {
		t.Fatalf("register rule pack: %v", err)
	}
	if err := hooks.RegisterRulePack(RulePack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty rule pack to fail")
	}

	engine := rules.NewEngine()
	if err := hooks.ApplyRulePacks(engine); err != nil {
		t.Fatalf("apply rule packs: %v", err)
	}
	if !slices.Contains(engine.Types(), "always.pass") {
		t.Fatalf("expected custom rule type in engine, got %v", engine.Types())
	}
	if err := engine.Evaluate(context.Background(), []rules.Definition{{Type: "always.pass"}}, map[string]any{}); err != nil {
		t.Fatalf("evaluate custom rule: %v", err)
	}
}

func TestExtensionHooks_Bundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("bundle_b", func(CommandQueryService) (any, error) {
		return "b", nil
	}); err != nil {
		t.Fatalf("register bundle b: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("bundle_a", func(service CommandQueryService) (any, error) {
		return NewFacade(service)
	}); err != nil {
		t.Fatalf("register bundle a: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("bundle_a", func(CommandQueryService) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate bundle error")
	}
	if names := hooks.BundleNames(); !slices.Equal(names, []string{"bundle_a", "bundle_b"}) {
		t.Fatalf("unexpected bundle names %v", names)
	}

	bundles, err := hooks.BuildCommandQueryBundles(&stubFacadeService{})
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if _, ok := bundles["bundle_a"].(*Facade); !ok {
		t.Fatalf("expected facade bundle, got %T", bundles["bundle_a"])
	}
	if bundles["bundle_b"] != "b" {
		t.Fatalf("unexpected bundle_b value %#v", bundles["bundle_b"])
	}
	if _, err := hooks.BuildCommandQueryBundles(nil); err == nil {
		t.Fatalf("expected nil service error")
	}
}

func staticSourceFactory(claims map[string]any) core.AttestationSourceFactory {
	return core.AttestationSourceFactoryFunc(func(core.AttestationDefinition) (core.AttestationSource, error) {
		return core.AttestationSourceFunc(func(context.Context, core.AttestationContext) (map[string]any, error) {
			return claims, nil
		}), nil
	})
}

type passRule struct{}

func (passRule) Evaluate(context.Context, map[string]any) error { return nil }
