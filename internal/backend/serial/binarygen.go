package serial

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// binaryMemberPlan is the codegen-relevant shape of one data member
type binaryMemberPlan struct {
	fieldExpr string
	goField   string
	name      string
	class     typeClass
	elemClass typeClass
}

// planBinaryMembers resolves the member layout for binary codegen. Inline
// binary declarations cover primitive members and sequences of primitives;
// nested objects stay on the generic runtime core, which frames them by
// walking the model on both ends.
func planBinaryMembers(em *synth.Emitter) ([]binaryMemberPlan, error) {
	engine := em.Engine()
	recv := synth.ReceiverName(em.TargetName())
	members, err := engine.DataMembersOf(em.Target())
	if err != nil {
		return nil, err
	}

	var plans []binaryMemberPlan
	for member := range members {
		name, err := engine.NameOf(member)
		if err != nil {
			return nil, err
		}
		memberType, err := engine.TypeOf(member)
		if err != nil {
			return nil, err
		}
		class, err := classifyFor(engine, memberType)
		if err != nil {
			return nil, err
		}
		plan := binaryMemberPlan{
			fieldExpr: recv + "." + synth.GoName(name),
			goField:   synth.GoName(name),
			name:      name,
			class:     class,
		}
		switch class {
		case classInt, classFloat, classString, classBool:
		case classSequence:
			elem, err := engine.ElementOf(memberType)
			if err != nil {
				return nil, err
			}
			elemClass, err := classifyFor(engine, elem)
			if err != nil {
				return nil, err
			}
			switch elemClass {
			case classInt, classFloat, classString, classBool:
				plan.elemClass = elemClass
			default:
				return nil, binaryUnsupported(em, engine, elem, name)
			}
		default:
			return nil, binaryUnsupported(em, engine, memberType, name)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func binaryUnsupported(em *synth.Emitter, engine *query.Engine, t model.Handle, member string) error {
	typeName, err := engine.NameOf(t)
	if err != nil {
		typeName = "<invalid>"
	}
	return em.Errorf(errors.ErrUnsupportedMemberType,
		"member %s of %s: type %s has no inline binary form", member, em.TargetName(), typeName)
}

// binaryPreambleNeeds reports which scratch declarations the encode body
// requires: a varint scratch buffer for ints, string length prefixes, and
// sequence counts, and an 8-byte buffer for float members or elements.
func binaryPreambleNeeds(plans []binaryMemberPlan) (needsVarint, needsFloat bool) {
	for _, p := range plans {
		switch p.class {
		case classInt, classString:
			needsVarint = true
		case classFloat:
			needsFloat = true
		case classSequence:
			needsVarint = true
			if p.elemClass == classFloat {
				needsFloat = true
			}
		}
	}
	return needsVarint, needsFloat
}

// EmitTo synthesizes the to_binary method: name-free, length-prefixed
// encoding of the data members in declaration order
func (f *BinaryFormat) EmitTo(em *synth.Emitter) error {
	plans, err := planBinaryMembers(em)
	if err != nil {
		return err
	}

	needsVarint, needsFloat := binaryPreambleNeeds(plans)
	body := []string{"var buf bytes.Buffer"}
	if needsVarint {
		body = append(body,
			"var scratch [binary.MaxVarintLen64]byte",
			"var n int",
		)
	}
	if needsFloat {
		body = append(body, "var fb [8]byte")
	}

	for _, p := range plans {
		if p.class == classSequence {
			body = append(body,
				fmt.Sprintf("n = binary.PutUvarint(scratch[:], uint64(len(%s)))", p.fieldExpr),
				"buf.Write(scratch[:n])",
				fmt.Sprintf("for _, el := range %s {", p.fieldExpr),
			)
			for _, l := range binaryEncodeLines(p.elemClass, "el") {
				body = append(body, "\t"+l)
			}
			body = append(body, "}")
			continue
		}
		body = append(body, binaryEncodeLines(p.class, p.fieldExpr)...)
	}
	body = append(body, "return buf.Bytes()")

	imports := []string{"bytes"}
	if needsVarint {
		imports = append(imports, "encoding/binary")
	}
	if needsFloat {
		imports = append(imports, "encoding/binary", "math")
	}

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "to_binary",
		GoName:    "ToBinary",
		Signature: "() []byte",
		Body:      body,
		Doc:       fmt.Sprintf("ToBinary encodes the %s in declaration order without member names", em.TargetName()),
		Imports:   imports,
	})
	return nil
}

// binaryEncodeLines renders the encode statements for one primitive value
func binaryEncodeLines(class typeClass, expr string) []string {
	switch class {
	case classInt:
		return []string{
			fmt.Sprintf("n = binary.PutVarint(scratch[:], %s)", expr),
			"buf.Write(scratch[:n])",
		}
	case classFloat:
		return []string{
			fmt.Sprintf("binary.BigEndian.PutUint64(fb[:], math.Float64bits(%s))", expr),
			"buf.Write(fb[:])",
		}
	case classString:
		return []string{
			fmt.Sprintf("n = binary.PutUvarint(scratch[:], uint64(len(%s)))", expr),
			"buf.Write(scratch[:n])",
			fmt.Sprintf("buf.WriteString(%s)", expr),
		}
	case classBool:
		return []string{
			fmt.Sprintf("if %s {", expr),
			"\tbuf.WriteByte(1)",
			"} else {",
			"\tbuf.WriteByte(0)",
			"}",
		}
	default:
		return nil
	}
}

// EmitFrom synthesizes the from_binary constructor, reading members back in
// the same declaration order the encoder wrote them
func (f *BinaryFormat) EmitFrom(em *synth.Emitter) error {
	plans, err := planBinaryMembers(em)
	if err != nil {
		return err
	}
	target := em.TargetName()

	body := []string{
		"r := bytes.NewReader(data)",
		fmt.Sprintf("var v %s", target),
	}
	needsIO := false
	needsFloat := false
	for i, p := range plans {
		if p.class == classSequence {
			cnt := fmt.Sprintf("n%d", i)
			el := fmt.Sprintf("el%d", i)
			idx := fmt.Sprintf("i%d", i)
			elemType := binaryGoType(p.elemClass)
			body = append(body,
				fmt.Sprintf("%s, err := binary.ReadUvarint(r)", cnt),
				"if err != nil {",
				"\treturn nil, err",
				"}",
				fmt.Sprintf("v.%s = make([]%s, 0, %s)", p.goField, elemType, cnt),
				fmt.Sprintf("for %s := uint64(0); %s < %s; %s++ {", idx, idx, cnt, idx),
			)
			lines, io, fl := binaryDecodeLines(p.elemClass, el, fmt.Sprintf("%sv", el))
			needsIO = needsIO || io
			needsFloat = needsFloat || fl
			for _, l := range lines {
				body = append(body, "\t"+l)
			}
			body = append(body,
				fmt.Sprintf("\tv.%s = append(v.%s, %s)", p.goField, p.goField, el),
				"}",
			)
			continue
		}
		lines, io, fl := binaryDecodeLines(p.class, fmt.Sprintf("m%d", i), fmt.Sprintf("m%dv", i))
		needsIO = needsIO || io
		needsFloat = needsFloat || fl
		body = append(body, lines...)
		body = append(body, fmt.Sprintf("v.%s = m%d", p.goField, i))
	}
	body = append(body, "return &v, nil")

	imports := []string{"bytes", "encoding/binary"}
	if needsIO {
		imports = append(imports, "io")
	}
	if needsFloat {
		imports = append(imports, "math")
	}

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    "from_binary",
		GoName:    target + "FromBinary",
		Signature: fmt.Sprintf("(data []byte) (*%s, error)", target),
		Body:      body,
		Doc:       fmt.Sprintf("%sFromBinary decodes a %s from its binary rendering", target, target),
		Imports:   imports,
	})
	return nil
}

// binaryDecodeLines renders statements declaring dst with one decoded
// primitive. scratch names a free helper identifier for multi-step reads.
func binaryDecodeLines(class typeClass, dst, scratch string) ([]string, bool, bool) {
	switch class {
	case classInt:
		return []string{
			fmt.Sprintf("%s, err := binary.ReadVarint(r)", dst),
			"if err != nil {",
			"\treturn nil, err",
			"}",
		}, false, false
	case classFloat:
		return []string{
			fmt.Sprintf("var %s [8]byte", scratch),
			fmt.Sprintf("if _, err := io.ReadFull(r, %s[:]); err != nil {", scratch),
			"\treturn nil, err",
			"}",
			fmt.Sprintf("%s := math.Float64frombits(binary.BigEndian.Uint64(%s[:]))", dst, scratch),
		}, true, true
	case classString:
		return []string{
			fmt.Sprintf("%sn, err := binary.ReadUvarint(r)", scratch),
			"if err != nil {",
			"\treturn nil, err",
			"}",
			fmt.Sprintf("%s := make([]byte, %sn)", scratch, scratch),
			fmt.Sprintf("if _, err := io.ReadFull(r, %s); err != nil {", scratch),
			"\treturn nil, err",
			"}",
			fmt.Sprintf("%s := string(%s)", dst, scratch),
		}, true, false
	case classBool:
		return []string{
			fmt.Sprintf("%sb, err := r.ReadByte()", scratch),
			"if err != nil {",
			"\treturn nil, err",
			"}",
			fmt.Sprintf("%s := %sb != 0", dst, scratch),
		}, false, false
	default:
		return nil, false, false
	}
}

// binaryGoType maps a primitive type class to its generated Go type
func binaryGoType(class typeClass) string {
	switch class {
	case classInt:
		return "int64"
	case classFloat:
		return "float64"
	case classString:
		return "string"
	case classBool:
		return "bool"
	default:
		return "interface{}"
	}
}
