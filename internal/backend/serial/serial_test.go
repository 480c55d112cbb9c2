package serial

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaforge-lang/metaforge/compiler/errors"
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

func lookup(t *testing.T, e *query.Engine, name string) model.Handle {
	t.Helper()
	h, ok := e.Unit().Lookup(name)
	require.True(t, ok, "type %s not found", name)
	return h
}

func newCore(t *testing.T, e *query.Engine) *Core {
	t.Helper()
	c := NewCore(e)
	require.NoError(t, c.RegisterFormat(NewJSONFormat()))
	require.NoError(t, c.RegisterFormat(NewBinaryFormat()))
	return c
}

const serialSource = `type Address {
	street: string
	zip: string
}
type User {
	id: int
	name: string
	score: float
	active: bool
	tags: array<string>
	home: Address
}`

func sampleUser(e *query.Engine, t *testing.T) *Value {
	t.Helper()
	home := NewValue(lookup(t, e, "Address")).
		Set("street", "Baker St").
		Set("zip", "NW1")
	return NewValue(lookup(t, e, "User")).
		Set("id", int64(-7)).
		Set("name", "Ada").
		Set("score", 98.5).
		Set("active", true).
		Set("tags", []interface{}{"admin", "staff"}).
		Set("home", home)
}

func TestJSONFollowsDeclarationOrder(t *testing.T) {
	e := buildEngine(t, `type Person {
	name: string
	age: int
}`)
	c := newCore(t, e)

	v := NewValue(lookup(t, e, "Person")).
		Set("name", "Ada").
		Set("age", int64(36))
	data, err := c.Serialize(v, "json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada","age":36}`, string(data))
}

func TestJSONRoundTrip(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)
	v := sampleUser(e, t)

	data, err := c.Serialize(v, "json")
	require.NoError(t, err)

	got, err := c.Deserialize(data, lookup(t, e, "User"), "json")
	require.NoError(t, err)
	if diff := cmp.Diff(v, got, cmp.AllowUnexported(model.Handle{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)
	v := sampleUser(e, t)

	data, err := c.Serialize(v, "binary")
	require.NoError(t, err)

	got, err := c.Deserialize(data, lookup(t, e, "User"), "binary")
	require.NoError(t, err)
	if diff := cmp.Diff(v, got, cmp.AllowUnexported(model.Handle{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryOmitsMemberNames(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)
	v := sampleUser(e, t)

	binData, err := c.Serialize(v, "binary")
	require.NoError(t, err)
	jsonData, err := c.Serialize(v, "json")
	require.NoError(t, err)

	for _, name := range []string{"street", "zip", "score", "active", "tags", "home"} {
		assert.False(t, bytes.Contains(binData, []byte(name)),
			"binary payload must not carry member name %q", name)
	}
	assert.Less(t, len(binData), len(jsonData))
}

func TestBinaryRejectsTruncatedPayload(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)

	data, err := c.Serialize(sampleUser(e, t), "binary")
	require.NoError(t, err)

	_, err = c.Deserialize(data[:len(data)/2], lookup(t, e, "User"), "binary")
	require.Error(t, err)
}

func TestUnknownFormatIsRejected(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)
	v := sampleUser(e, t)

	_, err := c.Serialize(v, "xml")
	require.Error(t, err)
	assert.True(t, IsUnknownFormat(err))

	_, err = c.Deserialize([]byte("{}"), lookup(t, e, "User"), "xml")
	require.Error(t, err)
	assert.True(t, IsUnknownFormat(err))
}

func TestMissingMemberDataIsRejected(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)

	v := NewValue(lookup(t, e, "Address")).Set("street", "Baker St")
	_, err := c.Serialize(v, "json")
	require.Error(t, err)
	be, ok := err.(*BackendError)
	require.True(t, ok)
	assert.Equal(t, "zip", be.Member)
}

func TestFormatNamesAreSorted(t *testing.T) {
	e := buildEngine(t, serialSource)
	c := newCore(t, e)
	assert.Equal(t, []string{"binary", "json"}, c.FormatNames())

	require.Error(t, c.RegisterFormat(NewJSONFormat()), "duplicate format name")
}

func runSerializable(t *testing.T, e *query.Engine, target model.Handle, name string, params ...parser.Literal) (*synth.Emitter, error) {
	t.Helper()
	gen := NewMetaclass(NewJSONFormat(), NewBinaryFormat())
	em, err := synth.NewEmitter(e, target)
	require.NoError(t, err)
	app := compose.Application{
		Metaclass:  MetaclassName,
		Target:     target,
		TargetName: name,
		Params:     params,
	}
	err = em.InMetaclass(MetaclassName, parser.SourceLocation{File: "test.mf", Line: 1}, func() error {
		return gen(em, app)
	})
	return em, err
}

func fragmentsBySymbol(em *synth.Emitter) map[string]synth.Fragment {
	out := make(map[string]synth.Fragment)
	for _, f := range em.Fragments() {
		out[f.Symbol] = f
	}
	return out
}

func TestSerializableDefaultsToJSON(t *testing.T) {
	e := buildEngine(t, serialSource)
	em, err := runSerializable(t, e, lookup(t, e, "User"), "User")
	require.NoError(t, err)

	frags := fragmentsBySymbol(em)
	require.Len(t, frags, 2)

	toJSON := frags["to_json"]
	assert.Equal(t, synth.FragmentMethod, toJSON.Kind)
	assert.Equal(t, "ToJSON", toJSON.GoName)
	assert.Equal(t, "() string", toJSON.Signature)
	assert.Contains(t, toJSON.Imports, "strings")
	assert.Equal(t, "return b.String()", toJSON.Body[len(toJSON.Body)-1])

	fromJSON := frags["from_json"]
	assert.Equal(t, synth.FragmentFunc, fromJSON.Kind)
	assert.Equal(t, "UserFromJSON", fromJSON.GoName)
	assert.Equal(t, "(data string) (*User, error)", fromJSON.Signature)
	assert.Contains(t, fromJSON.Imports, "encoding/json")
}

func TestSerializableEmitsOnePairPerFormat(t *testing.T) {
	e := buildEngine(t, `type Pt {
	x: int
	y: int
}`)
	em, err := runSerializable(t, e, lookup(t, e, "Pt"), "Pt",
		parser.Literal{Kind: parser.LitIdent, Str: "json"},
		parser.Literal{Kind: parser.LitIdent, Str: "binary"},
	)
	require.NoError(t, err)

	frags := fragmentsBySymbol(em)
	require.Len(t, frags, 4)
	assert.Equal(t, "ToBinary", frags["to_binary"].GoName)
	assert.Equal(t, "() []byte", frags["to_binary"].Signature)
	assert.Equal(t, "PtFromBinary", frags["from_binary"].GoName)
	assert.Equal(t, "(data []byte) (*Pt, error)", frags["from_binary"].Signature)
}

func TestSerializableRejectsUnknownFormat(t *testing.T) {
	e := buildEngine(t, serialSource)
	em, err := runSerializable(t, e, lookup(t, e, "User"), "User",
		parser.Literal{Kind: parser.LitIdent, Str: "xml"})
	require.Error(t, err)
	assert.True(t, em.Failed())

	diags := em.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, errors.ErrUnknownFormat, diags[0].Code)
}

func TestBinaryCodegenDeclaresOnlyNeededScratch(t *testing.T) {
	e := buildEngine(t, `type Flag {
	on: bool
}
type Reading {
	celsius: float
}
type Batch {
	label: string
	samples: array<float>
}`)

	em, err := runSerializable(t, e, lookup(t, e, "Flag"), "Flag",
		parser.Literal{Kind: parser.LitIdent, Str: "binary"})
	require.NoError(t, err)
	body := strings.Join(fragmentsBySymbol(em)["to_binary"].Body, "\n")
	assert.NotContains(t, body, "scratch")
	assert.NotContains(t, body, "var fb")
	assert.NotContains(t, fragmentsBySymbol(em)["to_binary"].Imports, "encoding/binary")

	em, err = runSerializable(t, e, lookup(t, e, "Reading"), "Reading",
		parser.Literal{Kind: parser.LitIdent, Str: "binary"})
	require.NoError(t, err)
	body = strings.Join(fragmentsBySymbol(em)["to_binary"].Body, "\n")
	assert.NotContains(t, body, "scratch")
	assert.Contains(t, body, "var fb [8]byte")
	assert.Contains(t, fragmentsBySymbol(em)["to_binary"].Imports, "math")

	// strings need the varint scratch, float elements the fixed buffer
	em, err = runSerializable(t, e, lookup(t, e, "Batch"), "Batch",
		parser.Literal{Kind: parser.LitIdent, Str: "binary"})
	require.NoError(t, err)
	body = strings.Join(fragmentsBySymbol(em)["to_binary"].Body, "\n")
	assert.Contains(t, body, "var scratch [binary.MaxVarintLen64]byte")
	assert.Contains(t, body, "var fb [8]byte")
}

func TestBinaryCodegenRejectsNestedObjects(t *testing.T) {
	e := buildEngine(t, serialSource)
	// User embeds an Address member, which generated binary code does not
	// walk; the runtime core handles it instead
	em, err := runSerializable(t, e, lookup(t, e, "User"), "User",
		parser.Literal{Kind: parser.LitIdent, Str: "binary"})
	require.Error(t, err)

	diags := em.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, errors.ErrUnsupportedMemberType, diags[0].Code)
}

func TestJSONCodegenWritesKeysInDeclarationOrder(t *testing.T) {
	e := buildEngine(t, `type Person {
	name: string
	age: int
}`)
	em, err := runSerializable(t, e, lookup(t, e, "Person"), "Person")
	require.NoError(t, err)

	body := strings.Join(fragmentsBySymbol(em)["to_json"].Body, "\n")
	name := strings.Index(body, `"name`)
	age := strings.Index(body, `"age`)
	require.NotEqual(t, -1, name)
	require.NotEqual(t, -1, age)
	assert.Less(t, name, age)
}
