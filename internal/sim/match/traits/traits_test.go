package traits

import (
	"testing"

	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

func testResolver(t *testing.T) *CatalogResolver {
	t.Helper()
	cat, err := catalogs.NewTraitCatalog([]catalogs.TraitDef{
		{ID: "guard", Effect: "damage_reduction", Triggers: []string{"damage_taken"}, Value: 10, StaminaCost: 2, Cooldown: 1},
		{ID: "strike", Effect: "combat_bonus", Triggers: []string{"convergence"}, Value: 7},
		{ID: "never", Effect: "combat_bonus", Triggers: []string{"convergence"}, Value: 99, Chance: 0.0001},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewCatalogResolver(cat)
}

func testCharacter(t *testing.T, traitIDs ...string) *model.Character {
	t.Helper()
	c, err := model.NewCharacter("c1", "C1", "A", model.RoleVG, model.Attributes{}, traitIDs)
	if err != nil {
		t.Fatalf("character: %v", err)
	}
	return c
}

func TestCatalogResolver_TriggerFilterAndStaminaCost(t *testing.T) {
	r := testResolver(t)
	ctx := matchctx.New("m", 1, nil)
	c := testCharacter(t, "guard", "strike")

	effs := r.ResolveEffects(c, TriggerDamageTaken, ctx)
	if got := Sum(effs, DamageReduction); got != 10 {
		t.Fatalf("expected reduction 10, got %v", got)
	}
	if got := Sum(effs, StaminaCost); got != 2 {
		t.Fatalf("expected stamina cost 2, got %v", got)
	}
	if got := Sum(effs, CombatBonus); got != 0 {
		t.Fatalf("convergence trait fired on damage_taken: %v", got)
	}
	if len(ctx.TraitLog) != 1 || c.Stats[model.StatTraitActivation] != 1 {
		t.Fatalf("expected one logged activation, got log=%d stat=%d", len(ctx.TraitLog), c.Stats[model.StatTraitActivation])
	}
}

func TestCatalogResolver_Cooldown(t *testing.T) {
	r := testResolver(t)
	ctx := matchctx.New("m", 1, nil)
	c := testCharacter(t, "guard")

	ctx.Round = 1
	if len(r.ResolveEffects(c, TriggerDamageTaken, ctx)) == 0 {
		t.Fatalf("expected activation in round 1")
	}
	ctx.Round = 2
	if len(r.ResolveEffects(c, TriggerDamageTaken, ctx)) != 0 {
		t.Fatalf("expected cooldown in round 2")
	}
	ctx.Round = 3
	if len(r.ResolveEffects(c, TriggerDamageTaken, ctx)) == 0 {
		t.Fatalf("expected activation again in round 3")
	}
}

func TestCatalogResolver_UnknownAndChanceGatedTraits(t *testing.T) {
	r := testResolver(t)
	c := testCharacter(t, "missing", "never", "strike")
	// Without a context chance-gated traits never fire.
	effs := r.ResolveEffects(c, TriggerConvergence, nil)
	if got := Sum(effs, CombatBonus); got != 7 {
		t.Fatalf("expected only strike bonus 7, got %v", got)
	}
}
