package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/lexer"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
)

func newTestEmitter(t *testing.T) *Emitter {
	t.Helper()
	tokens, lexErrs := lexer.New(`type User {
	id: int
	name: string
}`, "test.mf").ScanTokens()
	require.Empty(t, lexErrs)
	program, parseErrs := parser.New(tokens).Parse()
	require.Empty(t, parseErrs)

	unit := model.NewUnit("test")
	h, err := unit.Reflect(program.Types[0])
	require.NoError(t, err)
	unit.Seal()

	em, err := NewEmitter(query.New(unit), h)
	require.NoError(t, err)
	return em
}

func TestGoName(t *testing.T) {
	tests := []struct {
		symbol   string
		expected string
	}{
		{"to_json", "ToJSON"},
		{"from_json", "FromJSON"},
		{"find_by_email", "FindByEmail"},
		{"schema_sql", "SchemaSQL"},
		{"save", "Save"},
		{"set_id", "SetID"},
		{"add_observer", "AddObserver"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GoName(tt.symbol))
	}
}

func TestEmitterRejectsUnknownTarget(t *testing.T) {
	em := newTestEmitter(t)
	_, err := NewEmitter(em.Engine(), model.Handle{})
	require.Error(t, err)
	assert.True(t, model.IsInvalidHandle(err))
}

func TestDeclareTagsProvenance(t *testing.T) {
	em := newTestEmitter(t)
	site := parser.SourceLocation{File: "test.mf", Line: 1, Column: 1}

	err := em.InMetaclass("serializable", site, func() error {
		em.Declare(Fragment{Kind: FragmentMethod, Symbol: "to_json", GoName: "ToJSON"})
		em.Declare(Fragment{Kind: FragmentMethod, Symbol: "from_json", GoName: "FromJSON"})
		return nil
	})
	require.NoError(t, err)

	fragments := em.Fragments()
	require.Len(t, fragments, 2)
	assert.Equal(t, "serializable", fragments[0].Provenance.Metaclass)
	assert.Equal(t, "User", fragments[0].Provenance.Target)
	assert.Equal(t, 0, fragments[0].Provenance.GenerationStep)
	assert.Equal(t, 1, fragments[1].Provenance.GenerationStep)
	assert.Equal(t, 1, fragments[0].Provenance.ApplicationSite.Line)
}

func TestProvenanceScopePopsOnFailure(t *testing.T) {
	em := newTestEmitter(t)
	site := parser.SourceLocation{File: "test.mf", Line: 3, Column: 1}

	err := em.InMetaclass("entity", site, func() error {
		return em.Require(false, "no primary key on %s", em.TargetName())
	})
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.True(t, em.Failed())

	// The scope must be gone: a diagnostic recorded now carries no
	// metaclass name
	em.Warnf("after scope")
	diags := em.Diagnostics()
	last := diags[len(diags)-1]
	assert.Empty(t, last.Provenance.Metaclass)
	assert.Equal(t, "User", last.Provenance.Target)
}

func TestRequirePassesOnTrueCondition(t *testing.T) {
	em := newTestEmitter(t)
	require.NoError(t, em.Require(true, "never raised"))
	assert.False(t, em.Failed())
	assert.Empty(t, em.Diagnostics())
}

func TestWarningsNeverHalt(t *testing.T) {
	em := newTestEmitter(t)
	em.Warnf("member %s is suspicious", "name")
	assert.False(t, em.Failed())

	diags := em.Diagnostics()
	require.Len(t, diags, 1)
	assert.True(t, diags[0].IsWarning())
}

func TestHasFragmentObservesEarlierMetaclasses(t *testing.T) {
	em := newTestEmitter(t)
	site := parser.SourceLocation{File: "test.mf"}

	require.NoError(t, em.InMetaclass("serializable", site, func() error {
		em.Declare(Fragment{Kind: FragmentMethod, Symbol: "to_json", GoName: "ToJSON"})
		return nil
	}))

	require.NoError(t, em.InMetaclass("entity", site, func() error {
		assert.True(t, em.HasFragment("to_json"))
		assert.False(t, em.HasFragment("save"))
		return nil
	}))
}

func TestMergePreservesApplicationOrder(t *testing.T) {
	em := newTestEmitter(t)
	site := parser.SourceLocation{File: "test.mf"}

	require.NoError(t, em.InMetaclass("serializable", site, func() error {
		em.Declare(Fragment{
			Kind:      FragmentMethod,
			Symbol:    "to_json",
			GoName:    "ToJSON",
			Signature: "() string",
			Body:      []string{`return "{}"`},
			Imports:   []string{"strings"},
		})
		return nil
	}))
	require.NoError(t, em.InMetaclass("observable", site, func() error {
		em.Declare(Fragment{
			Kind:      FragmentField,
			Symbol:    "observers",
			GoName:    "observers",
			Signature: "[]func()",
		})
		em.Declare(Fragment{
			Kind:      FragmentMethod,
			Symbol:    "add_observer",
			GoName:    "AddObserver",
			Signature: "(fn func())",
			Body:      []string{"u.observers = append(u.observers, fn)"},
		})
		return nil
	}))

	merged, err := em.Merge()
	require.NoError(t, err)

	assert.Equal(t, "User", merged.Target)
	require.Len(t, merged.Fields, 1)
	assert.Equal(t, "observers", merged.Fields[0].GoName)
	assert.Equal(t, []string{"strings"}, merged.Imports)

	toJSON := strings.Index(merged.Source, "func (u *User) ToJSON() string {")
	addObserver := strings.Index(merged.Source, "func (u *User) AddObserver(fn func()) {")
	require.NotEqual(t, -1, toJSON)
	require.NotEqual(t, -1, addObserver)
	assert.Less(t, toJSON, addObserver, "fragments must merge in application order")
}

func TestMergeFailedTargetIsError(t *testing.T) {
	em := newTestEmitter(t)
	_ = em.Errorf(errors.ErrConstraintViolation, "boom")

	_, err := em.Merge()
	require.Error(t, err)
}

func TestMergedSpansMapLinesToProvenance(t *testing.T) {
	em := newTestEmitter(t)
	site := parser.SourceLocation{File: "test.mf", Line: 7}

	require.NoError(t, em.InMetaclass("serializable", site, func() error {
		em.Declare(Fragment{
			Kind:      FragmentMethod,
			Symbol:    "to_json",
			GoName:    "ToJSON",
			Signature: "() string",
			Body:      []string{`return "{}"`},
		})
		return nil
	}))

	merged, err := em.Merge()
	require.NoError(t, err)
	require.Len(t, merged.Spans, 1)

	p, ok := merged.ProvenanceAt(merged.Spans[0].StartLine)
	require.True(t, ok)
	assert.Equal(t, "serializable", p.Metaclass)
	assert.Equal(t, 7, p.ApplicationSite.Line)

	_, ok = merged.ProvenanceAt(merged.Spans[0].EndLine + 100)
	assert.False(t, ok)
}

func TestReceiverName(t *testing.T) {
	assert.Equal(t, "u", ReceiverName("User"))
	assert.Equal(t, "a", ReceiverName("Admin"))
}
