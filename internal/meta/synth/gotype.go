package synth

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
)

// GoType renders the Go type for a reflected member type. Ints widen to
// int64 and floats to float64 so generated code round-trips every declared
// value.
func GoType(e *query.Engine, t model.Handle) (string, error) {
	if ok, err := e.IsFloat(t); err != nil {
		return "", err
	} else if ok {
		return "float64", nil
	}
	if ok, err := e.IsArithmetic(t); err != nil {
		return "", err
	} else if ok {
		return "int64", nil
	}
	if ok, err := e.IsString(t); err != nil {
		return "", err
	} else if ok {
		return "string", nil
	}
	if ok, err := e.IsBool(t); err != nil {
		return "", err
	} else if ok {
		return "bool", nil
	}
	if ok, err := e.IsSequence(t); err != nil {
		return "", err
	} else if ok {
		elem, err := e.ElementOf(t)
		if err != nil {
			return "", err
		}
		elemType, err := GoType(e, elem)
		if err != nil {
			return "", err
		}
		return "[]" + elemType, nil
	}
	if ok, err := e.IsClass(t); err != nil {
		return "", err
	} else if ok {
		return e.NameOf(t)
	}
	name, err := e.NameOf(t)
	if err != nil {
		name = "<invalid>"
	}
	return "", fmt.Errorf("type %s has no Go rendering", name)
}
