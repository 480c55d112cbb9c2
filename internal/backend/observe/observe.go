// Package observe implements the behavioral metaclasses: observable adds
// change notification with per-member setters, immutable adds copy-on-write
// with_<member> builders, and comparable adds structural equality. The
// composer rejects observable and immutable on the same target; mutating
// setters contradict copy-on-write semantics.
package observe

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/internal/meta/compose"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

const (
	// ObservableName is the registered name of the observable metaclass
	ObservableName = "observable"
	// ImmutableName is the registered name of the immutable metaclass
	ImmutableName = "immutable"
	// ComparableName is the registered name of the comparable metaclass
	ComparableName = "comparable"
)

// Register adds the behavioral metaclasses to a registry along with the
// observable/immutable incompatibility
func Register(registry *compose.Registry) error {
	if err := registry.Register(ObservableName, NewObservable()); err != nil {
		return err
	}
	if err := registry.Register(ImmutableName, NewImmutable()); err != nil {
		return err
	}
	if err := registry.Register(ComparableName, NewComparable()); err != nil {
		return err
	}
	registry.RegisterIncompatible(ObservableName, ImmutableName)
	return nil
}

// memberShape is the codegen-relevant shape of one data member
type memberShape struct {
	name    string
	goField string
	goType  string
	t       model.Handle
}

func dataMemberShapes(em *synth.Emitter) ([]memberShape, error) {
	engine := em.Engine()
	members, err := engine.DataMembersOf(em.Target())
	if err != nil {
		return nil, err
	}
	var shapes []memberShape
	for member := range members {
		name, err := engine.NameOf(member)
		if err != nil {
			return nil, err
		}
		t, err := engine.TypeOf(member)
		if err != nil {
			return nil, err
		}
		goType, err := synth.GoType(engine, t)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, memberShape{
			name:    name,
			goField: synth.GoName(name),
			goType:  goType,
			t:       t,
		})
	}
	return shapes, nil
}

func requireClass(em *synth.Emitter, metaclass string) error {
	isClass, err := em.Engine().IsClass(em.Target())
	if err != nil {
		return err
	}
	return em.Require(isClass, "%s applies to class types only, %s is not one", metaclass, em.TargetName())
}

// NewObservable builds the observable metaclass generator: an observer
// list, add_observer and notify_observers, and a set_<member> for every
// data member that routes through notification
func NewObservable() compose.Generator {
	return func(em *synth.Emitter, app compose.Application) error {
		if err := requireClass(em, ObservableName); err != nil {
			return err
		}
		shapes, err := dataMemberShapes(em)
		if err != nil {
			return err
		}
		recv := synth.ReceiverName(em.TargetName())

		em.Declare(synth.Fragment{
			Kind:      synth.FragmentField,
			Symbol:    "observers",
			GoName:    "observers",
			Signature: "[]func(member string, oldValue, newValue interface{})",
		})

		em.Declare(synth.Fragment{
			Kind:      synth.FragmentMethod,
			Symbol:    "add_observer",
			GoName:    "AddObserver",
			Signature: "(fn func(member string, oldValue, newValue interface{}))",
			Body: []string{
				fmt.Sprintf("%s.observers = append(%s.observers, fn)", recv, recv),
			},
			Doc: "AddObserver registers a callback invoked after every member change",
		})

		em.Declare(synth.Fragment{
			Kind:      synth.FragmentMethod,
			Symbol:    "notify_observers",
			GoName:    "NotifyObservers",
			Signature: "(member string, oldValue, newValue interface{})",
			Body: []string{
				fmt.Sprintf("for _, fn := range %s.observers {", recv),
				"\tfn(member, oldValue, newValue)",
				"}",
			},
			Doc: "NotifyObservers invokes every registered observer with the change",
		})

		for _, m := range shapes {
			em.Declare(synth.Fragment{
				Kind:      synth.FragmentMethod,
				Symbol:    "set_" + m.name,
				GoName:    "Set" + m.goField,
				Signature: fmt.Sprintf("(value %s)", m.goType),
				Body: []string{
					fmt.Sprintf("old := %s.%s", recv, m.goField),
					fmt.Sprintf("%s.%s = value", recv, m.goField),
					fmt.Sprintf("%s.NotifyObservers(%q, old, value)", recv, m.name),
				},
				Doc: fmt.Sprintf("Set%s assigns %s and notifies observers of the change", m.goField, m.name),
			})
		}
		return nil
	}
}

// NewImmutable builds the immutable metaclass generator: a with_<member>
// builder per data member returning a modified copy
func NewImmutable() compose.Generator {
	return func(em *synth.Emitter, app compose.Application) error {
		if err := requireClass(em, ImmutableName); err != nil {
			return err
		}
		shapes, err := dataMemberShapes(em)
		if err != nil {
			return err
		}
		target := em.TargetName()
		recv := synth.ReceiverName(target)

		for _, m := range shapes {
			em.Declare(synth.Fragment{
				Kind:      synth.FragmentMethod,
				Symbol:    "with_" + m.name,
				GoName:    "With" + m.goField,
				Signature: fmt.Sprintf("(value %s) *%s", m.goType, target),
				Body: []string{
					fmt.Sprintf("next := *%s", recv),
					fmt.Sprintf("next.%s = value", m.goField),
					"return &next",
				},
				Doc: fmt.Sprintf("With%s returns a copy with %s replaced", m.goField, m.name),
			})
		}
		return nil
	}
}

// NewComparable builds the comparable metaclass generator: a structural
// equals over the data members
func NewComparable() compose.Generator {
	return func(em *synth.Emitter, app compose.Application) error {
		if err := requireClass(em, ComparableName); err != nil {
			return err
		}
		shapes, err := dataMemberShapes(em)
		if err != nil {
			return err
		}
		engine := em.Engine()
		target := em.TargetName()
		recv := synth.ReceiverName(target)

		body := []string{
			"if other == nil {",
			"\treturn false",
			"}",
		}
		for _, m := range shapes {
			left := recv + "." + m.goField
			right := "other." + m.goField
			isSeq, err := engine.IsSequence(m.t)
			if err != nil {
				return err
			}
			isClass, err := engine.IsClass(m.t)
			if err != nil {
				return err
			}
			switch {
			case isSeq:
				elem, err := engine.ElementOf(m.t)
				if err != nil {
					return err
				}
				elemIsClass, err := engine.IsClass(elem)
				if err != nil {
					return err
				}
				elemIsSeq, err := engine.IsSequence(elem)
				if err != nil {
					return err
				}
				if err := em.Require(!elemIsSeq,
					"comparable cannot compare member %s of %s, nested sequences have no equality", m.name, target); err != nil {
					return err
				}
				elemCheck := fmt.Sprintf("\tif %s[i] != %s[i] {", left, right)
				if elemIsClass {
					elemCheck = fmt.Sprintf("\tif !%s[i].Equals(&%s[i]) {", left, right)
				}
				body = append(body,
					fmt.Sprintf("if len(%s) != len(%s) {", left, right),
					"\treturn false",
					"}",
					fmt.Sprintf("for i := range %s {", left),
					elemCheck,
					"\t\treturn false",
					"\t}",
					"}",
				)
			case isClass:
				body = append(body,
					fmt.Sprintf("if !%s.Equals(&%s) {", left, right),
					"\treturn false",
					"}",
				)
			default:
				body = append(body,
					fmt.Sprintf("if %s != %s {", left, right),
					"\treturn false",
					"}",
				)
			}
		}
		body = append(body, "return true")

		em.Declare(synth.Fragment{
			Kind:      synth.FragmentMethod,
			Symbol:    "equals",
			GoName:    "Equals",
			Signature: fmt.Sprintf("(other *%s) bool", target),
			Body:      body,
			Doc:       fmt.Sprintf("Equals reports member-wise equality with another %s", target),
		})
		return nil
	}
}
