package serial

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// SourceFormat is a wire format that can additionally synthesize inline
// to_<name>/from_<name> declarations for a target. Registering a format
// that only implements Format still serves the generic core; the
// serializable metaclass requires a SourceFormat.
type SourceFormat interface {
	Format
	EmitTo(em *synth.Emitter) error
	EmitFrom(em *synth.Emitter) error
}

// MetaclassName is the name the serializable metaclass registers under
const MetaclassName = "serializable"

// NewMetaclass builds the serializable metaclass generator over the given
// wire formats. Each format argument of the application yields a
// to_<format>/from_<format> pair; with no arguments the json format is
// assumed.
func NewMetaclass(formats ...Format) compose.Generator {
	byName := make(map[string]Format, len(formats))
	for _, f := range formats {
		byName[f.Name()] = f
	}
	return func(em *synth.Emitter, app compose.Application) error {
		isClass, err := em.Engine().IsClass(em.Target())
		if err != nil {
			return err
		}
		if err := em.Require(isClass, "serializable applies to class types only, %s is not one", em.TargetName()); err != nil {
			return err
		}

		for _, name := range formatArgs(app.Params) {
			format, ok := byName[name]
			if !ok {
				return em.Errorf(errors.ErrUnknownFormat,
					"unknown serialization format %q on %s", name, em.TargetName())
			}
			src, ok := format.(SourceFormat)
			if !ok {
				return em.Errorf(errors.ErrUnknownFormat,
					"format %q cannot synthesize declarations", name)
			}
			if err := src.EmitTo(em); err != nil {
				return err
			}
			if err := src.EmitFrom(em); err != nil {
				return err
			}
		}
		return nil
	}
}

// formatArgs extracts format names from the application's parameter list
func formatArgs(params []parser.Literal) []string {
	if len(params) == 0 {
		return []string{"json"}
	}
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Str)
	}
	return names
}

// EmitTo synthesizes the to_json method: a compact JSON rendering with
// members in declaration order
func (f *JSONFormat) EmitTo(em *synth.Emitter) error {
	engine := em.Engine()
	recv := synth.ReceiverName(em.TargetName())

	body := []string{
		"var b strings.Builder",
		`b.WriteByte('{')`,
	}
	members, err := engine.DataMembersOf(em.Target())
	if err != nil {
		return err
	}
	first := true
	for member := range members {
		name, err := engine.NameOf(member)
		if err != nil {
			return err
		}
		if !first {
			body = append(body, `b.WriteByte(',')`)
		}
		first = false
		body = append(body, fmt.Sprintf("b.WriteString(%q)", fmt.Sprintf("%q:", name)))

		memberType, err := engine.TypeOf(member)
		if err != nil {
			return err
		}
		lines, err := jsonValueLines(em, memberType, recv+"."+synth.GoName(name), name, 0)
		if err != nil {
			return err
		}
		body = append(body, lines...)
	}
	body = append(body,
		`b.WriteByte('}')`,
		"return b.String()",
	)

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "to_json",
		GoName:    "ToJSON",
		Signature: "() string",
		Body:      body,
		Doc:       fmt.Sprintf("ToJSON renders the %s as a compact JSON object", em.TargetName()),
		Imports:   []string{"strconv", "strings"},
	})
	return nil
}

// jsonValueLines renders the statements that append one value's JSON to the
// builder. depth disambiguates loop variables for nested sequences.
func jsonValueLines(em *synth.Emitter, t model.Handle, expr, member string, depth int) ([]string, error) {
	engine := em.Engine()
	class, err := classifyFor(engine, t)
	if err != nil {
		return nil, err
	}
	switch class {
	case classInt:
		return []string{fmt.Sprintf("b.WriteString(strconv.FormatInt(%s, 10))", expr)}, nil
	case classFloat:
		return []string{fmt.Sprintf("b.WriteString(strconv.FormatFloat(%s, 'g', -1, 64))", expr)}, nil
	case classString:
		return []string{fmt.Sprintf("b.WriteString(strconv.Quote(%s))", expr)}, nil
	case classBool:
		return []string{fmt.Sprintf("b.WriteString(strconv.FormatBool(%s))", expr)}, nil
	case classObject:
		return []string{fmt.Sprintf("b.WriteString(%s.ToJSON())", expr)}, nil
	case classSequence:
		elem, err := engine.ElementOf(t)
		if err != nil {
			return nil, err
		}
		idx := fmt.Sprintf("i%d", depth)
		el := fmt.Sprintf("el%d", depth)
		inner, err := jsonValueLines(em, elem, el, member, depth+1)
		if err != nil {
			return nil, err
		}
		lines := []string{
			`b.WriteByte('[')`,
			fmt.Sprintf("for %s, %s := range %s {", idx, el, expr),
			fmt.Sprintf("\tif %s > 0 {", idx),
			"\t\tb.WriteByte(',')",
			"\t}",
		}
		for _, l := range inner {
			lines = append(lines, "\t"+l)
		}
		lines = append(lines, "}", `b.WriteByte(']')`)
		return lines, nil
	default:
		typeName, nameErr := engine.NameOf(t)
		if nameErr != nil {
			typeName = "<invalid>"
		}
		return nil, em.Errorf(errors.ErrUnsupportedMemberType,
			"member %s of %s: type %s has no JSON form", member, em.TargetName(), typeName)
	}
}

// EmitFrom synthesizes the from_json constructor. Parsing leans on the
// struct's json tags, which the host pipeline emits from the declared
// member names.
func (f *JSONFormat) EmitFrom(em *synth.Emitter) error {
	target := em.TargetName()
	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    "from_json",
		GoName:    target + "FromJSON",
		Signature: fmt.Sprintf("(data string) (*%s, error)", target),
		Body: []string{
			fmt.Sprintf("var v %s", target),
			"if err := json.Unmarshal([]byte(data), &v); err != nil {",
			"\treturn nil, err",
			"}",
			"return &v, nil",
		},
		Doc:     fmt.Sprintf("%sFromJSON parses a %s from its JSON rendering", target, target),
		Imports: []string{"encoding/json"},
	})
	return nil
}

// classifyFor is classify without a Core, for codegen paths
func classifyFor(engine *query.Engine, t model.Handle) (typeClass, error) {
	c := &Core{engine: engine}
	return c.classify(t)
}
