package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/lexer"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

func newTestTarget(t *testing.T) (*query.Engine, model.Handle) {
	t.Helper()
	tokens, lexErrs := lexer.New(`type User {
	id: int
}`, "test.mf").ScanTokens()
	require.Empty(t, lexErrs)
	program, parseErrs := parser.New(tokens).Parse()
	require.Empty(t, parseErrs)

	unit := model.NewUnit("test")
	h, err := unit.Reflect(program.Types[0])
	require.NoError(t, err)
	unit.Seal()
	return query.New(unit), h
}

// noop returns a generator that records its execution order in trace
func noop(name string, trace *[]string) Generator {
	return func(em *synth.Emitter, app Application) error {
		*trace = append(*trace, name)
		return nil
	}
}

func app(name string, target model.Handle, order int) Application {
	return Application{
		Metaclass:        name,
		Target:           target,
		TargetName:       "User",
		SourceOrderIndex: order,
		Site:             parser.SourceLocation{File: "test.mf", Line: order + 1},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("serializable", noop("serializable", &trace)))
	require.Error(t, r.Register("serializable", noop("serializable", &trace)))
}

func TestPlanKeepsSourceOrderWithoutDependencies(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("serializable", noop("serializable", &trace)))
	require.NoError(t, r.Register("entity", noop("entity", &trace)))
	require.NoError(t, r.Register("comparable", noop("comparable", &trace)))

	plan, err := r.PlanComposition(target, "User", []Application{
		app("comparable", target, 0),
		app("entity", target, 1),
		app("serializable", target, 2),
	})
	require.NoError(t, err)

	names := make([]string, len(plan.Ordered))
	for i, a := range plan.Ordered {
		names[i] = a.Metaclass
	}
	assert.Equal(t, []string{"comparable", "entity", "serializable"}, names)
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("serializable", noop("serializable", &trace)))
	require.NoError(t, r.Register("audited", noop("audited", &trace), "serializable"))

	// audited is written first but depends on serializable
	plan, err := r.PlanComposition(target, "User", []Application{
		app("audited", target, 0),
		app("serializable", target, 1),
	})
	require.NoError(t, err)

	require.Len(t, plan.Ordered, 2)
	assert.Equal(t, "serializable", plan.Ordered[0].Metaclass)
	assert.Equal(t, "audited", plan.Ordered[1].Metaclass)
}

func TestPlanRejectsUnknownMetaclass(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()

	_, err := r.PlanComposition(target, "User", []Application{
		app("nonexistent", target, 0),
	})
	require.Error(t, err)
	ce, ok := err.(*ComposeError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnknownMetaclass, ce.Code)
}

func TestPlanRejectsUnsatisfiedDependency(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("serializable", noop("serializable", &trace)))
	require.NoError(t, r.Register("audited", noop("audited", &trace), "serializable"))

	_, err := r.PlanComposition(target, "User", []Application{
		app("audited", target, 0),
	})
	require.Error(t, err)
	assert.True(t, IsUnsatisfiedDependency(err))
}

func TestPlanRejectsIncompatiblePair(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("observable", noop("observable", &trace)))
	require.NoError(t, r.Register("immutable", noop("immutable", &trace)))
	r.RegisterIncompatible("observable", "immutable")

	plan, err := r.PlanComposition(target, "User", []Application{
		app("immutable", target, 0),
		app("observable", target, 1),
	})
	require.Error(t, err)
	assert.True(t, IsCompositionConflict(err))
	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, "immutable", plan.Conflicts[0].First)
	assert.Equal(t, "observable", plan.Conflicts[0].Second)

	// The relation is symmetric
	assert.True(t, r.Incompatible("immutable", "observable"))
	assert.True(t, r.Incompatible("observable", "immutable"))
}

func TestPlanRejectsDuplicateApplication(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("entity", noop("entity", &trace)))

	_, err := r.PlanComposition(target, "User", []Application{
		app("entity", target, 0),
		app("entity", target, 1),
	})
	require.Error(t, err)
	assert.True(t, IsCompositionConflict(err))
}

func TestPlanRejectsDependencyCycle(t *testing.T) {
	_, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("a", noop("a", &trace), "b"))
	require.NoError(t, r.Register("b", noop("b", &trace), "a"))

	_, err := r.PlanComposition(target, "User", []Application{
		app("a", target, 0),
		app("b", target, 1),
	})
	require.Error(t, err)
	ce, ok := err.(*ComposeError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrDependencyCycle, ce.Code)
}

func TestExecuteRunsPlanInOrder(t *testing.T) {
	engine, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	require.NoError(t, r.Register("serializable", noop("serializable", &trace)))
	require.NoError(t, r.Register("audited", noop("audited", &trace), "serializable"))

	plan, err := r.PlanComposition(target, "User", []Application{
		app("audited", target, 0),
		app("serializable", target, 1),
	})
	require.NoError(t, err)

	em, err := synth.NewEmitter(engine, target)
	require.NoError(t, err)
	require.NoError(t, r.Execute(plan, em))
	assert.Equal(t, []string{"serializable", "audited"}, trace)
}

func TestExecuteStopsAtConstraintFailure(t *testing.T) {
	engine, target := newTestTarget(t)
	r := NewRegistry()
	var trace []string
	failing := func(em *synth.Emitter, app Application) error {
		return em.Require(false, "target unsuitable")
	}
	require.NoError(t, r.Register("failing", failing))
	require.NoError(t, r.Register("after", noop("after", &trace)))

	plan, err := r.PlanComposition(target, "User", []Application{
		app("failing", target, 0),
		app("after", target, 1),
	})
	require.NoError(t, err)

	em, err := synth.NewEmitter(engine, target)
	require.NoError(t, err)
	err = r.Execute(plan, em)
	require.Error(t, err)
	assert.True(t, synth.IsConstraintError(err))
	assert.Empty(t, trace, "later metaclasses must not run after a fatal failure")
	assert.True(t, em.Failed())
}

func TestLaterMetaclassObservesEarlierFragments(t *testing.T) {
	engine, target := newTestTarget(t)
	r := NewRegistry()

	emitter := func(em *synth.Emitter, app Application) error {
		em.Declare(synth.Fragment{Kind: synth.FragmentMethod, Symbol: "to_json", GoName: "ToJSON"})
		return nil
	}
	var sawToJSON bool
	observer := func(em *synth.Emitter, app Application) error {
		sawToJSON = em.HasFragment("to_json")
		return nil
	}
	require.NoError(t, r.Register("serializable", emitter))
	require.NoError(t, r.Register("audited", observer, "serializable"))

	plan, err := r.PlanComposition(target, "User", []Application{
		app("audited", target, 0),
		app("serializable", target, 1),
	})
	require.NoError(t, err)

	em, err := synth.NewEmitter(engine, target)
	require.NoError(t, err)
	require.NoError(t, r.Execute(plan, em))
	assert.True(t, sawToJSON)
}
