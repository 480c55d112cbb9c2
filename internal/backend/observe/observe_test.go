package observe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaforge-lang/metaforge/compiler/lexer"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

func buildEngine(t *testing.T, source string) *query.Engine {
	t.Helper()
	tokens, lexErrs := lexer.New(source, "test.mf").ScanTokens()
	require.Empty(t, lexErrs)
	program, parseErrs := parser.New(tokens).Parse()
	require.Empty(t, parseErrs)

	ordered, err := model.ReflectionOrder(program.Types)
	require.NoError(t, err)

	unit := model.NewUnit("test")
	for _, decl := range ordered {
		_, err := unit.Reflect(decl)
		require.NoError(t, err)
	}
	unit.Seal()
	return query.New(unit)
}

func runGenerator(t *testing.T, gen compose.Generator, e *query.Engine, typeName, metaclass string) *synth.Emitter {
	t.Helper()
	target, ok := e.Unit().Lookup(typeName)
	require.True(t, ok)
	em, err := synth.NewEmitter(e, target)
	require.NoError(t, err)
	app := compose.Application{
		Metaclass:  metaclass,
		Target:     target,
		TargetName: typeName,
	}
	err = em.InMetaclass(metaclass, parser.SourceLocation{File: "test.mf", Line: 1}, func() error {
		return gen(em, app)
	})
	require.NoError(t, err)
	return em
}

func fragmentsBySymbol(em *synth.Emitter) map[string]synth.Fragment {
	out := make(map[string]synth.Fragment)
	for _, f := range em.Fragments() {
		out[f.Symbol] = f
	}
	return out
}

const pointSource = `type Point {
	x: int
	y: int
	label: string
}`

func TestObservableFragments(t *testing.T) {
	e := buildEngine(t, pointSource)
	em := runGenerator(t, NewObservable(), e, "Point", ObservableName)
	frags := fragmentsBySymbol(em)

	require.Len(t, frags, 6)

	observers := frags["observers"]
	assert.Equal(t, synth.FragmentField, observers.Kind)
	assert.Equal(t, "[]func(member string, oldValue, newValue interface{})", observers.Signature)

	assert.Equal(t, "AddObserver", frags["add_observer"].GoName)
	assert.Equal(t, "NotifyObservers", frags["notify_observers"].GoName)

	setX := frags["set_x"]
	assert.Equal(t, "SetX", setX.GoName)
	assert.Equal(t, "(value int64)", setX.Signature)
	body := strings.Join(setX.Body, "\n")
	assert.Contains(t, body, "old := p.X")
	assert.Contains(t, body, `p.NotifyObservers("x", old, value)`)

	assert.Equal(t, "(value string)", frags["set_label"].Signature)
}

func TestImmutableFragments(t *testing.T) {
	e := buildEngine(t, pointSource)
	em := runGenerator(t, NewImmutable(), e, "Point", ImmutableName)
	frags := fragmentsBySymbol(em)

	require.Len(t, frags, 3)
	withX := frags["with_x"]
	assert.Equal(t, "WithX", withX.GoName)
	assert.Equal(t, "(value int64) *Point", withX.Signature)
	assert.Equal(t, []string{
		"next := *p",
		"next.X = value",
		"return &next",
	}, withX.Body)
}

func TestComparableHandlesSequencesAndNestedClasses(t *testing.T) {
	e := buildEngine(t, `type Inner {
	v: int
}
type Outer {
	id: int
	tags: array<string>
	inner: Inner
}`)
	em := runGenerator(t, NewComparable(), e, "Outer", ComparableName)
	frags := fragmentsBySymbol(em)

	equals := frags["equals"]
	require.NotEmpty(t, equals.Body)
	assert.Equal(t, "(other *Outer) bool", equals.Signature)

	body := strings.Join(equals.Body, "\n")
	assert.Contains(t, body, "if other == nil {")
	assert.Contains(t, body, "if o.ID != other.ID {")
	assert.Contains(t, body, "if len(o.Tags) != len(other.Tags) {")
	assert.Contains(t, body, "if o.Tags[i] != other.Tags[i] {")
	assert.Contains(t, body, "if !o.Inner.Equals(&other.Inner) {")
	assert.Equal(t, "return true", equals.Body[len(equals.Body)-1])
}

func TestComparableComparesClassElementsWithEquals(t *testing.T) {
	e := buildEngine(t, `type Inner {
	v: int
}
type Bag {
	items: array<Inner>
}`)
	em := runGenerator(t, NewComparable(), e, "Bag", ComparableName)

	body := strings.Join(fragmentsBySymbol(em)["equals"].Body, "\n")
	assert.Contains(t, body, "if len(b.Items) != len(other.Items) {")
	assert.Contains(t, body, "if !b.Items[i].Equals(&other.Items[i]) {")
	assert.NotContains(t, body, "b.Items[i] != other.Items[i]")
}

func TestComparableRejectsNestedSequences(t *testing.T) {
	e := buildEngine(t, `type Grid {
	cells: array<array<int>>
}`)
	target, ok := e.Unit().Lookup("Grid")
	require.True(t, ok)
	em, err := synth.NewEmitter(e, target)
	require.NoError(t, err)

	gen := NewComparable()
	app := compose.Application{
		Metaclass:  ComparableName,
		Target:     target,
		TargetName: "Grid",
	}
	err = em.InMetaclass(ComparableName, parser.SourceLocation{File: "test.mf", Line: 1}, func() error {
		return gen(em, app)
	})
	require.Error(t, err)
	assert.True(t, synth.IsConstraintError(err))
	assert.True(t, em.Failed())
}

func TestRegisterWiresIncompatibility(t *testing.T) {
	r := compose.NewRegistry()
	require.NoError(t, Register(r))

	assert.True(t, r.Incompatible(ObservableName, ImmutableName))
	assert.False(t, r.Incompatible(ObservableName, ComparableName))

	for _, name := range []string{ObservableName, ImmutableName, ComparableName} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "metaclass %s not registered", name)
	}

	// registering twice collides on the metaclass names
	require.Error(t, Register(r))
}
