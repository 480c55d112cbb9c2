package compose

import (
	"fmt"
	"sort"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/parser"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// Application is one metaclass application to one target: the tuple
// (metaclass name, target, parameters, source order index). Consumed exactly
// once by the composer; SourceOrderIndex is the textual order of the
// annotation and the composition tie-break.
type Application struct {
	Metaclass        string
	Target           model.Handle
	TargetName       string
	Params           []parser.Literal
	SourceOrderIndex int
	Site             parser.SourceLocation
}

// Conflict names two metaclasses rejected as incompatible on a target
type Conflict struct {
	First  string
	Second string
	Target string
}

// CompositionPlan is the ordered list of applications for one target plus
// the conflict report (empty on success). Built once per target; the
// application order is stable: dependency order dominates, ties fall back
// to SourceOrderIndex.
type CompositionPlan struct {
	Target     model.Handle
	TargetName string
	Ordered    []Application
	Conflicts  []Conflict
}

// ComposeError is a composer-layer failure, detected eagerly before any
// synthesis runs so no partial fragments leak
type ComposeError struct {
	Code     string
	Message  string
	Target   string
	Location parser.SourceLocation
}

// Error implements the error interface
func (e *ComposeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Diagnostic converts the error into a structured diagnostic
func (e *ComposeError) Diagnostic() errors.Diagnostic {
	d := errors.New("composer", e.Code, e.Message, errors.SourceLocation{
		File:   e.Location.File,
		Line:   e.Location.Line,
		Column: e.Location.Column,
	}, errors.Fatal)
	d.Provenance.Target = e.Target
	return d
}

// IsCompositionConflict reports whether err is a CompositionConflict
func IsCompositionConflict(err error) bool {
	ce, ok := err.(*ComposeError)
	return ok && ce.Code == errors.ErrCompositionConflict
}

// IsUnsatisfiedDependency reports whether err is an UnsatisfiedDependency
func IsUnsatisfiedDependency(err error) bool {
	ce, ok := err.(*ComposeError)
	return ok && ce.Code == errors.ErrUnsatisfiedDependency
}

// PlanComposition resolves the applications for one target into an ordered,
// conflict-checked plan:
//
//  1. every applied metaclass must be registered
//  2. any pair declared incompatible aborts planning with CompositionConflict
//  3. a declared dependency not applied to the same target aborts with
//     UnsatisfiedDependency
//  4. applications are ordered so dependencies run first; remaining ties
//     keep source order
func (r *Registry) PlanComposition(target model.Handle, targetName string, apps []Application) (*CompositionPlan, error) {
	plan := &CompositionPlan{Target: target, TargetName: targetName}
	if len(apps) == 0 {
		return plan, nil
	}

	applied := make(map[string]*Application, len(apps))
	for i := range apps {
		app := &apps[i]
		if _, ok := r.Lookup(app.Metaclass); !ok {
			return plan, &ComposeError{
				Code:     errors.ErrUnknownMetaclass,
				Message:  fmt.Sprintf("unknown metaclass %s applied to %s", app.Metaclass, targetName),
				Target:   targetName,
				Location: app.Site,
			}
		}
		if _, dup := applied[app.Metaclass]; dup {
			return plan, &ComposeError{
				Code:     errors.ErrCompositionConflict,
				Message:  fmt.Sprintf("metaclass %s applied twice to %s", app.Metaclass, targetName),
				Target:   targetName,
				Location: app.Site,
			}
		}
		applied[app.Metaclass] = app
	}

	// Pairwise compatibility check before anything else runs
	for i := 0; i < len(apps); i++ {
		for j := i + 1; j < len(apps); j++ {
			if r.Incompatible(apps[i].Metaclass, apps[j].Metaclass) {
				plan.Conflicts = append(plan.Conflicts, Conflict{
					First:  apps[i].Metaclass,
					Second: apps[j].Metaclass,
					Target: targetName,
				})
			}
		}
	}
	if len(plan.Conflicts) > 0 {
		c := plan.Conflicts[0]
		return plan, &ComposeError{
			Code:     errors.ErrCompositionConflict,
			Message:  fmt.Sprintf("metaclasses %s and %s are incompatible on target %s", c.First, c.Second, c.Target),
			Target:   targetName,
			Location: apps[0].Site,
		}
	}

	// Dependency check
	for _, app := range apps {
		mc, _ := r.Lookup(app.Metaclass)
		for _, dep := range mc.DependsOn {
			if _, ok := applied[dep]; !ok {
				return plan, &ComposeError{
					Code:     errors.ErrUnsatisfiedDependency,
					Message:  fmt.Sprintf("metaclass %s requires %s to be applied to %s", app.Metaclass, dep, targetName),
					Target:   targetName,
					Location: app.Site,
				}
			}
		}
	}

	// Topological order over declared dependencies, source order as the
	// tie-break: among all ready applications, the lowest SourceOrderIndex
	// runs next.
	indegree := make(map[string]int, len(apps))
	dependents := make(map[string][]string, len(apps))
	for _, app := range apps {
		mc, _ := r.Lookup(app.Metaclass)
		for _, dep := range mc.DependsOn {
			indegree[app.Metaclass]++
			dependents[dep] = append(dependents[dep], app.Metaclass)
		}
	}

	ready := make([]*Application, 0, len(apps))
	for _, app := range apps {
		if indegree[app.Metaclass] == 0 {
			ready = append(ready, applied[app.Metaclass])
		}
	}

	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return ready[i].SourceOrderIndex < ready[j].SourceOrderIndex
		})
		next := ready[0]
		ready = ready[1:]
		plan.Ordered = append(plan.Ordered, *next)

		for _, dependent := range dependents[next.Metaclass] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, applied[dependent])
			}
		}
	}

	if len(plan.Ordered) != len(apps) {
		return plan, &ComposeError{
			Code:     errors.ErrDependencyCycle,
			Message:  fmt.Sprintf("metaclass dependency cycle on target %s", targetName),
			Target:   targetName,
			Location: apps[0].Site,
		}
	}

	return plan, nil
}

// Execute runs the plan strictly in order against the emitter. Each
// metaclass runs inside a provenance scope; a later metaclass observes all
// fragments emitted by earlier ones in the same plan.
func (r *Registry) Execute(plan *CompositionPlan, em *synth.Emitter) error {
	for _, app := range plan.Ordered {
		mc, ok := r.Lookup(app.Metaclass)
		if !ok {
			return fmt.Errorf("metaclass disappeared from registry: %s", app.Metaclass)
		}
		err := em.InMetaclass(app.Metaclass, app.Site, func() error {
			return mc.Generate(em, app)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
