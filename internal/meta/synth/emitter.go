package synth

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
)

// ConstraintError is the synthesis-layer failure raised by a metaclass's own
// require or error call. It is fatal for the current target only; sibling
// targets proceed independently.
type ConstraintError struct {
	Diag errors.Diagnostic
}

// Error implements the error interface
func (e *ConstraintError) Error() string {
	return e.Diag.Error()
}

// IsConstraintError reports whether err is a synthesis constraint failure
func IsConstraintError(err error) bool {
	_, ok := err.(*ConstraintError)
	return ok
}

// Emitter collects fragments and diagnostics for a single target
// declaration. A scoped provenance context tracks the currently-executing
// metaclass: pushed on entry to a metaclass invocation and popped on every
// exit path.
type Emitter struct {
	engine     *query.Engine
	target     model.Handle
	targetName string

	fragments []Fragment
	diags     []errors.Diagnostic
	scope     []errors.Provenance
	step      int
	failed    bool
}

// NewEmitter creates an emitter for a target that already exists in the
// meta-object model. Synthesis never begins against an unreflected target.
func NewEmitter(engine *query.Engine, target model.Handle) (*Emitter, error) {
	name, err := engine.NameOf(target)
	if err != nil {
		return nil, err
	}
	return &Emitter{
		engine:     engine,
		target:     target,
		targetName: name,
	}, nil
}

// Target returns the target's meta-object handle
func (e *Emitter) Target() model.Handle {
	return e.target
}

// TargetName returns the target's declared name
func (e *Emitter) TargetName() string {
	return e.targetName
}

// Engine returns the reflection query engine the emitter operates over
func (e *Emitter) Engine() *query.Engine {
	return e.engine
}

// InMetaclass runs fn inside a provenance scope for the named metaclass.
// The scope is popped on every exit path, including early failure.
func (e *Emitter) InMetaclass(name string, site parser.SourceLocation, fn func() error) error {
	e.scope = append(e.scope, errors.Provenance{
		Metaclass: name,
		ApplicationSite: errors.SourceLocation{
			File:   site.File,
			Line:   site.Line,
			Column: site.Column,
		},
		Target: e.targetName,
	})
	defer func() {
		e.scope = e.scope[:len(e.scope)-1]
	}()
	return fn()
}

// provenance returns the current scope's provenance with the generation step
func (e *Emitter) provenance() errors.Provenance {
	var p errors.Provenance
	if len(e.scope) > 0 {
		p = e.scope[len(e.scope)-1]
	} else {
		p.Target = e.targetName
	}
	p.GenerationStep = e.step
	return p
}

// Declare appends a fragment to the target, tagging it with the
// currently-executing metaclass's provenance
func (e *Emitter) Declare(f Fragment) FragmentHandle {
	f.Provenance = e.provenance()
	e.step++
	e.fragments = append(e.fragments, f)
	return FragmentHandle(len(e.fragments) - 1)
}

// Require fails the whole synthesis for the target with ConstraintViolation
// when the condition is false. The failure is fatal for this target but not
// for the rest of the compilation unit.
func (e *Emitter) Require(condition bool, format string, args ...interface{}) error {
	if condition {
		return nil
	}
	return e.fail(errors.ErrConstraintViolation, format, args...)
}

// Warnf emits a warning diagnostic; warnings never halt synthesis
func (e *Emitter) Warnf(format string, args ...interface{}) {
	p := e.provenance()
	e.diags = append(e.diags, errors.Diagnostic{
		Phase:      "synthesis",
		Code:       errors.ErrConstraintViolation,
		Message:    fmt.Sprintf(format, args...),
		Severity:   errors.Warning,
		Provenance: p,
	})
}

// Errorf emits an error diagnostic and halts synthesis for the current
// target only, mirroring Require
func (e *Emitter) Errorf(code string, format string, args ...interface{}) error {
	return e.fail(code, format, args...)
}

// fail records a fatal diagnostic for this target and returns the
// constraint error generators propagate
func (e *Emitter) fail(code string, format string, args ...interface{}) error {
	p := e.provenance()
	diag := errors.Diagnostic{
		Phase:      "synthesis",
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Severity:   errors.Fatal,
		Provenance: p,
	}
	e.diags = append(e.diags, diag)
	e.failed = true
	return &ConstraintError{Diag: diag}
}

// HasFragment reports whether a fragment with the given contract symbol has
// already been emitted for this target. Later metaclasses in a plan use
// this to observe capabilities generated by earlier ones.
func (e *Emitter) HasFragment(symbol string) bool {
	for _, f := range e.fragments {
		if f.Symbol == symbol {
			return true
		}
	}
	return false
}

// Fragment returns an emitted fragment by handle
func (e *Emitter) Fragment(h FragmentHandle) (Fragment, error) {
	if int(h) < 0 || int(h) >= len(e.fragments) {
		return Fragment{}, fmt.Errorf("invalid fragment handle %d for target %s", h, e.targetName)
	}
	return e.fragments[int(h)], nil
}

// Fragments returns the emitted fragments in generation order
func (e *Emitter) Fragments() []Fragment {
	out := make([]Fragment, len(e.fragments))
	copy(out, e.fragments)
	return out
}

// Diagnostics returns the diagnostics recorded so far
func (e *Emitter) Diagnostics() []errors.Diagnostic {
	out := make([]errors.Diagnostic, len(e.diags))
	copy(out, e.diags)
	return out
}

// Failed reports whether a fatal constraint has been recorded for the target
func (e *Emitter) Failed() bool {
	return e.failed
}
