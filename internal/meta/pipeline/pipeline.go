// Package pipeline drives a compilation unit end to end: lex, parse,
// reflect, plan, synthesize, merge. Targets fail independently; one
// rejected target never blocks its siblings.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/lexer"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// TargetState tracks one declaration through the pipeline. States only
// advance; a rejected target never resumes.
type TargetState int

const (
	// Unreflected means the declaration has not entered the model
	Unreflected TargetState = iota
	// Reflected means the declaration has meta-objects in the model
	Reflected
	// Planned means a composition plan exists for the target
	Planned
	// Synthesizing means generators are running against the target
	Synthesizing
	// Merged means the target's fragments were merged successfully
	Merged
	// Rejected means a fatal diagnostic stopped the target
	Rejected
)

// String returns the string representation of the state
func (s TargetState) String() string {
	switch s {
	case Unreflected:
		return "unreflected"
	case Reflected:
		return "reflected"
	case Planned:
		return "planned"
	case Synthesizing:
		return "synthesizing"
	case Merged:
		return "merged"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TargetResult is the outcome for one declaration
type TargetResult struct {
	Name        string
	State       TargetState
	Handle      model.Handle
	Decl        *parser.TypeDecl
	Merged      *synth.Merged
	Diagnostics []errors.Diagnostic
}

// Result is the outcome of one pipeline run. Targets appear in declaration
// order regardless of the reflection order used internally.
type Result struct {
	SessionID   string
	File        string
	Unit        *model.Unit
	Engine      *query.Engine
	Targets     []*TargetResult
	Diagnostics []errors.Diagnostic // unit-level: lexing, parsing, ordering
}

// Failed reports whether any unit-level fatal or target rejection occurred
func (r *Result) Failed() bool {
	for _, d := range r.Diagnostics {
		if d.IsError() || d.IsFatal() {
			return true
		}
	}
	for _, t := range r.Targets {
		if t.State == Rejected {
			return true
		}
	}
	return false
}

// AllDiagnostics returns unit-level diagnostics followed by per-target
// diagnostics in declaration order
func (r *Result) AllDiagnostics() []errors.Diagnostic {
	out := append([]errors.Diagnostic(nil), r.Diagnostics...)
	for _, t := range r.Targets {
		out = append(out, t.Diagnostics...)
	}
	return out
}

// Pipeline wires the compiler front end to the reflection and synthesis
// layers
type Pipeline struct {
	registry  *compose.Registry
	log       *zap.Logger
	namespace string
}

// New creates a pipeline over a populated metaclass registry
func New(registry *compose.Registry, log *zap.Logger, namespace string) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		registry:  registry,
		log:       log,
		namespace: namespace,
	}
}

// Run processes one source file. Front-end failures reject the whole unit;
// reflection, planning and synthesis failures reject single targets.
func (p *Pipeline) Run(ctx context.Context, file, source string) (*Result, error) {
	result := &Result{
		SessionID: uuid.NewString(),
		File:      file,
	}
	log := p.log.With(
		zap.String("session", result.SessionID),
		zap.String("file", file),
	)

	tokens, lexErrs := lexer.New(source, file).ScanTokens()
	for _, le := range lexErrs {
		result.Diagnostics = append(result.Diagnostics, errors.New(
			"lexer", errors.ErrInvalidCharacter, le.Message,
			errors.SourceLocation{File: le.File, Line: le.Line, Column: le.Column},
			errors.Error,
		))
	}
	if len(lexErrs) > 0 {
		log.Warn("lexing failed", zap.Int("errors", len(lexErrs)))
		return result, nil
	}

	program, parseErrs := parser.New(tokens).Parse()
	for _, pe := range parseErrs {
		result.Diagnostics = append(result.Diagnostics, errors.New(
			"parser", errors.ErrUnexpectedToken, pe.Message,
			errors.SourceLocation{File: pe.Location.File, Line: pe.Location.Line, Column: pe.Location.Column},
			errors.Error,
		))
	}
	if len(parseErrs) > 0 {
		log.Warn("parsing failed", zap.Int("errors", len(parseErrs)))
		return result, nil
	}

	log.Debug("parsed unit", zap.Int("types", len(program.Types)))
	p.reflect(log, result, program)
	p.plan(log, result)
	p.synthesize(ctx, log, result)

	log.Info("pipeline finished",
		zap.Int("targets", len(result.Targets)),
		zap.Bool("failed", result.Failed()),
	)
	return result, nil
}

// reflect orders the declarations by their type dependencies and populates
// the meta-object arena. The arena is sealed afterwards; everything past
// this point reads concurrently.
func (p *Pipeline) reflect(log *zap.Logger, result *Result, program *parser.Program) {
	byName := make(map[string]*TargetResult, len(program.Types))
	for _, decl := range program.Types {
		tr := &TargetResult{Name: decl.Name, State: Unreflected, Decl: decl}
		result.Targets = append(result.Targets, tr)
		byName[decl.Name] = tr
	}

	ordered, err := model.ReflectionOrder(program.Types)
	if err != nil {
		// A type cycle poisons every declaration in the unit
		diag := reflectDiagnostic(err)
		result.Diagnostics = append(result.Diagnostics, diag)
		for _, tr := range result.Targets {
			tr.State = Rejected
		}
		log.Warn("reflection ordering failed", zap.String("error", err.Error()))
		return
	}

	unit := model.NewUnit(p.namespace)
	for _, decl := range ordered {
		tr := byName[decl.Name]
		h, err := unit.Reflect(decl)
		if err != nil {
			tr.State = Rejected
			tr.Diagnostics = append(tr.Diagnostics, reflectDiagnostic(err))
			log.Warn("reflection rejected target",
				zap.String("target", decl.Name),
				zap.String("error", err.Error()),
			)
			continue
		}
		tr.Handle = h
		tr.State = Reflected
	}
	unit.Seal()

	result.Unit = unit
	result.Engine = query.New(unit)
}

// plan builds a composition plan for every reflected target carrying
// annotations. Planning failures are eager: no synthesis starts for a
// target whose plan is invalid.
func (p *Pipeline) plan(log *zap.Logger, result *Result) {
	for _, tr := range result.Targets {
		if tr.State != Reflected || len(tr.Decl.Annotations) == 0 {
			continue
		}
		apps := applications(tr)
		_, err := p.registry.PlanComposition(tr.Handle, tr.Name, apps)
		if err != nil {
			tr.State = Rejected
			if ce, ok := err.(*compose.ComposeError); ok {
				tr.Diagnostics = append(tr.Diagnostics, ce.Diagnostic())
			} else {
				tr.Diagnostics = append(tr.Diagnostics, errors.New(
					"composer", errors.ErrCompositionConflict, err.Error(),
					errors.SourceLocation{}, errors.Fatal,
				))
			}
			log.Warn("composition rejected target",
				zap.String("target", tr.Name),
				zap.String("error", err.Error()),
			)
			continue
		}
		tr.State = Planned
	}
}

// synthesize runs the planned targets concurrently. Targets share only the
// sealed arena, so generators never observe each other's partial state.
func (p *Pipeline) synthesize(ctx context.Context, log *zap.Logger, result *Result) {
	g, _ := errgroup.WithContext(ctx)
	for _, tr := range result.Targets {
		if tr.State != Planned {
			continue
		}
		tr := tr
		g.Go(func() error {
			p.synthesizeTarget(log, result, tr)
			return nil
		})
	}
	// Per-target failures land in the target results, never here
	_ = g.Wait()
}

func (p *Pipeline) synthesizeTarget(log *zap.Logger, result *Result, tr *TargetResult) {
	tr.State = Synthesizing

	// Replanning is cheap and keeps each goroutine self-contained
	plan, err := p.registry.PlanComposition(tr.Handle, tr.Name, applications(tr))
	if err != nil {
		tr.State = Rejected
		return
	}

	em, err := synth.NewEmitter(result.Engine, tr.Handle)
	if err != nil {
		tr.State = Rejected
		tr.Diagnostics = append(tr.Diagnostics, errors.New(
			"synthesis", errors.ErrInvalidHandle, err.Error(),
			errors.SourceLocation{}, errors.Fatal,
		))
		return
	}

	if err := p.registry.Execute(plan, em); err != nil {
		tr.State = Rejected
		tr.Diagnostics = append(tr.Diagnostics, em.Diagnostics()...)
		if !synth.IsConstraintError(err) {
			tr.Diagnostics = append(tr.Diagnostics, errors.New(
				"synthesis", errors.ErrConstraintViolation, err.Error(),
				errors.SourceLocation{}, errors.Fatal,
			))
		}
		log.Warn("synthesis rejected target",
			zap.String("target", tr.Name),
			zap.String("error", err.Error()),
		)
		return
	}

	merged, err := em.Merge()
	if err != nil {
		tr.State = Rejected
		tr.Diagnostics = append(tr.Diagnostics, em.Diagnostics()...)
		return
	}

	tr.Merged = merged
	tr.Diagnostics = append(tr.Diagnostics, em.Diagnostics()...)
	tr.State = Merged
	log.Debug("target merged",
		zap.String("target", tr.Name),
		zap.Strings("symbols", merged.Symbols()),
	)
}

// applications converts a declaration's annotations into composer
// applications
func applications(tr *TargetResult) []compose.Application {
	apps := make([]compose.Application, 0, len(tr.Decl.Annotations))
	for _, ann := range tr.Decl.Annotations {
		apps = append(apps, compose.Application{
			Metaclass:        ann.Name,
			Target:           tr.Handle,
			TargetName:       tr.Name,
			Params:           ann.Args,
			SourceOrderIndex: ann.OrderIndex,
			Site:             ann.Loc,
		})
	}
	return apps
}

// reflectDiagnostic converts a model error into a diagnostic
func reflectDiagnostic(err error) errors.Diagnostic {
	if re, ok := err.(*model.ReflectError); ok {
		return re.Diagnostic()
	}
	return errors.New("reflection", errors.ErrNotReflectable,
		fmt.Sprintf("%v", err), errors.SourceLocation{}, errors.Fatal)
}
