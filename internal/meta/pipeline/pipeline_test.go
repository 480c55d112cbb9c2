package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/backend/entity"
	"github.com/metaforge-lang/metaforge/internal/backend/observe"
	"github.com/metaforge-lang/metaforge/internal/backend/serial"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
)

func newTestRegistry(t *testing.T) *compose.Registry {
	t.Helper()
	r := compose.NewRegistry()
	require.NoError(t, r.Register(serial.MetaclassName,
		serial.NewMetaclass(serial.NewJSONFormat(), serial.NewBinaryFormat())))
	require.NoError(t, r.Register(entity.MetaclassName, entity.NewMetaclass()))
	require.NoError(t, observe.Register(r))
	return r
}

func run(t *testing.T, source string) *Result {
	t.Helper()
	p := New(newTestRegistry(t), nil, "main")
	result, err := p.Run(context.Background(), "test.mf", source)
	require.NoError(t, err)
	return result
}

func target(t *testing.T, result *Result, name string) *TargetResult {
	t.Helper()
	for _, tr := range result.Targets {
		if tr.Name == name {
			return tr
		}
	}
	t.Fatalf("no target %s in result", name)
	return nil
}

func TestRunMergesAnnotatedTargets(t *testing.T) {
	result := run(t, `@serializable(json)
@comparable
type Person {
	name: string
	age: int
}`)
	require.False(t, result.Failed())

	person := target(t, result, "Person")
	assert.Equal(t, Merged, person.State)
	require.NotNil(t, person.Merged)
	assert.Contains(t, person.Merged.Symbols(), "to_json")
	assert.Contains(t, person.Merged.Symbols(), "equals")
}

func TestRunLeavesPlainTypesReflected(t *testing.T) {
	result := run(t, `type Plain {
	v: int
}`)
	require.False(t, result.Failed())
	assert.Equal(t, Reflected, target(t, result, "Plain").State)
}

func TestRenderUnitOutput(t *testing.T) {
	result := run(t, `@serializable(json)
type Person {
	name: string
	age: int
}`)
	require.False(t, result.Failed())

	src, err := RenderUnit(result, "generated")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(src, "// Code generated by metaforge. DO NOT EDIT.\n"))
	assert.Contains(t, src, "package generated\n")
	assert.Contains(t, src, "type Person struct {")
	assert.Contains(t, src, "\tName string `json:\"name\"`")
	assert.Contains(t, src, "\tAge int64 `json:\"age\"`")
	assert.Contains(t, src, "func (p *Person) ToJSON() string {")
	assert.Contains(t, src, "func PersonFromJSON(data string) (*Person, error) {")
	assert.Contains(t, src, "\"encoding/json\"")

	// imports come out as one sorted block
	ej := strings.Index(src, `"encoding/json"`)
	sc := strings.Index(src, `"strconv"`)
	st := strings.Index(src, `"strings"`)
	require.NotEqual(t, -1, ej)
	require.NotEqual(t, -1, sc)
	require.NotEqual(t, -1, st)
	assert.Less(t, ej, sc)
	assert.Less(t, sc, st)
}

func TestRenderEmbedsBaseType(t *testing.T) {
	result := run(t, `type User {
	id: int [primaryKey]
	name: string
}
type Admin : User {
	level: int
}`)
	require.False(t, result.Failed())

	src, err := RenderUnit(result, "generated")
	require.NoError(t, err)
	admin := src[strings.Index(src, "type Admin struct {"):]
	assert.Contains(t, admin[:strings.Index(admin, "}")], "\tUser\n")
}

func TestObservableFieldIsInjected(t *testing.T) {
	result := run(t, `@observable
type Counter {
	count: int
}`)
	require.False(t, result.Failed())

	src, err := RenderUnit(result, "generated")
	require.NoError(t, err)
	assert.Contains(t, src, "\tobservers []func(member string, oldValue, newValue interface{})\n")
	assert.Contains(t, src, "func (c *Counter) SetCount(value int64) {")
}

func TestRejectedTargetDoesNotBlockSiblings(t *testing.T) {
	result := run(t, `@nonexistent
type Broken {
	v: int
}
@serializable(json)
type Fine {
	v: int
}`)
	require.True(t, result.Failed())

	broken := target(t, result, "Broken")
	assert.Equal(t, Rejected, broken.State)
	require.NotEmpty(t, broken.Diagnostics)
	assert.Equal(t, errors.ErrUnknownMetaclass, broken.Diagnostics[0].Code)

	fine := target(t, result, "Fine")
	assert.Equal(t, Merged, fine.State)

	// rejected targets leave no trace in the rendered unit
	src, err := RenderUnit(result, "generated")
	require.NoError(t, err)
	assert.NotContains(t, src, "Broken")
	assert.Contains(t, src, "type Fine struct {")
}

func TestIncompatibleMetaclassesRejectTarget(t *testing.T) {
	result := run(t, `@observable
@immutable
type Conflicted {
	v: int
}`)
	require.True(t, result.Failed())

	tr := target(t, result, "Conflicted")
	assert.Equal(t, Rejected, tr.State)
	require.NotEmpty(t, tr.Diagnostics)
	assert.Equal(t, errors.ErrCompositionConflict, tr.Diagnostics[0].Code)
	assert.Nil(t, tr.Merged)
}

func TestConstraintFailureCarriesProvenance(t *testing.T) {
	result := run(t, `@entity("notes")
type Note {
	body: string
}`)
	require.True(t, result.Failed())

	tr := target(t, result, "Note")
	assert.Equal(t, Rejected, tr.State)
	require.NotEmpty(t, tr.Diagnostics)
	d := tr.Diagnostics[0]
	assert.Equal(t, errors.ErrMissingPrimaryKey, d.Code)
	assert.Equal(t, entity.MetaclassName, d.Provenance.Metaclass)
	assert.Equal(t, "Note", d.Provenance.Target)
}

func TestTypeCyclePoisonsWholeUnit(t *testing.T) {
	result := run(t, `type A : B {
	x: int
}
type B : A {
	y: int
}
type C {
	z: int
}`)
	require.True(t, result.Failed())
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, errors.ErrReflectionCycle, result.Diagnostics[0].Code)

	for _, tr := range result.Targets {
		assert.Equal(t, Rejected, tr.State, "target %s", tr.Name)
	}
}

func TestLexFailureStopsUnit(t *testing.T) {
	result := run(t, `type Bad ~ {}`)
	require.True(t, result.Failed())
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, errors.ErrInvalidCharacter, result.Diagnostics[0].Code)
	assert.Empty(t, result.Targets)
}

func TestParseFailureStopsUnit(t *testing.T) {
	result := run(t, `type {
	v: int
}`)
	require.True(t, result.Failed())
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, errors.ErrUnexpectedToken, result.Diagnostics[0].Code)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := run(t, `type T { v: int }`)
	b := run(t, `type T { v: int }`)
	assert.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}
