package model

import (
	"fmt"
	"sync/atomic"

	"github.com/metaforge-lang/metaforge/compiler/parser"
)

// unitCounter hands out unique unit identities so handles from one unit are
// rejected by another
var unitCounter atomic.Uint32

// Unit is the per-compilation-unit arena owning every meta-object reflected
// from that unit's declarations. The arena is append-once: objects are added
// during reflection, then the unit is sealed and becomes safe for concurrent
// readers. No cross-unit sharing.
type Unit struct {
	id          uint32
	objects     []MetaObject
	typesByName map[string]Handle
	declSource  map[string]*parser.TypeDecl
	arrayTypes  map[Handle]Handle
	declared    []Handle
	namespace   Handle
	sealed      atomic.Bool
}

// NewUnit creates a new compilation unit arena. The namespace name is the
// declaration grouping the unit represents, typically the source file.
// Primitive types are pre-seeded so that every declared type of a member
// resolves to a handle.
func NewUnit(namespace string) *Unit {
	u := &Unit{
		id:          unitCounter.Add(1),
		typesByName: make(map[string]Handle),
		declSource:  make(map[string]*parser.TypeDecl),
		arrayTypes:  make(map[Handle]Handle),
	}

	// Slot 0 is reserved so the zero Handle never resolves
	u.objects = append(u.objects, MetaObject{})

	u.namespace = u.append(MetaObject{
		Kind: KindNamespace,
		Name: namespace,
	})

	for _, p := range []Primitive{PrimInt, PrimFloat, PrimString, PrimBool} {
		h := u.append(MetaObject{
			Kind:       KindType,
			Name:       p.String(),
			Primitive:  p,
			Qualifiers: Qualifiers{Public: true},
		})
		u.typesByName[p.String()] = h
	}

	return u
}

// Namespace returns the handle of the unit's namespace meta-object
func (u *Unit) Namespace() Handle {
	return u.namespace
}

// Lookup resolves a type name to its handle
func (u *Unit) Lookup(name string) (Handle, bool) {
	h, ok := u.typesByName[name]
	return h, ok
}

// Reflect snapshots a type declaration into the arena and returns its
// handle. Reflect is deterministic and idempotent: reflecting the same
// declaration twice within one unit returns equal handles describing
// identical structure. It fails with NotReflectable when the declaration
// cannot be fully resolved, and with ReflectionCycle when a type embeds
// itself by value.
func (u *Unit) Reflect(decl *parser.TypeDecl) (Handle, error) {
	if u.sealed.Load() {
		return Handle{}, notReflectable(decl.Loc, "compilation unit is sealed; cannot reflect %s", decl.Name)
	}

	if existing, ok := u.typesByName[decl.Name]; ok {
		if u.declSource[decl.Name] == decl {
			return existing, nil
		}
		return Handle{}, notReflectable(decl.Loc, "duplicate type declaration: %s", decl.Name)
	}

	var base Handle
	if decl.Base != "" {
		h, ok := u.typesByName[decl.Base]
		if !ok {
			return Handle{}, notReflectable(decl.Loc, "unresolved base type %s of %s", decl.Base, decl.Name)
		}
		base = h
	}

	seen := make(map[string]bool, len(decl.Members))
	memberHandles := make([]Handle, 0, len(decl.Members))
	for _, m := range decl.Members {
		if seen[m.Name] {
			return Handle{}, notReflectable(m.Loc, "duplicate member %s in type %s", m.Name, decl.Name)
		}
		seen[m.Name] = true

		if named, ok := valueEmbeds(m); ok && named == decl.Name {
			return Handle{}, reflectionCycle(m.Loc, fmt.Sprintf("%s -> %s", decl.Name, decl.Name))
		}

		declaredType, err := u.resolveTypeRef(m.Type, decl.Name)
		if err != nil {
			return Handle{}, err
		}

		kind := KindMember
		var params []Param
		if m.IsFunction {
			kind = KindFunction
			params = make([]Param, 0, len(m.Params))
			for _, p := range m.Params {
				paramType, err := u.resolveTypeRef(p.Type, decl.Name)
				if err != nil {
					return Handle{}, err
				}
				params = append(params, Param{Name: p.Name, Type: paramType})
			}
		}

		memberHandles = append(memberHandles, u.append(MetaObject{
			Kind:         kind,
			Name:         m.Name,
			DeclaredType: declaredType,
			Qualifiers:   Qualifiers{Public: true},
			Attributes:   NewAttributeSet(m.Attributes),
			Params:       params,
			Loc:          m.Loc,
		}))
	}

	h := u.append(MetaObject{
		Kind:       KindType,
		Name:       decl.Name,
		Base:       base,
		Qualifiers: Qualifiers{Public: true},
		Loc:        decl.Loc,
		members:    memberHandles,
	})

	u.typesByName[decl.Name] = h
	u.declSource[decl.Name] = decl
	u.declared = append(u.declared, h)
	u.objects[u.namespace.index].members = append(u.objects[u.namespace.index].members, h)

	return h, nil
}

// resolveTypeRef resolves a parsed type reference to a meta-object handle,
// interning sequence types on first use
func (u *Unit) resolveTypeRef(ref *parser.TypeRef, owner string) (Handle, error) {
	switch ref.Kind {
	case parser.RefArray:
		elem, err := u.resolveTypeRef(ref.Elem, owner)
		if err != nil {
			return Handle{}, err
		}
		if existing, ok := u.arrayTypes[elem]; ok {
			return existing, nil
		}
		h := u.append(MetaObject{
			Kind:       KindType,
			Name:       "array<" + u.objects[elem.index].Name + ">",
			Sequence:   true,
			Elem:       elem,
			Qualifiers: Qualifiers{Public: true},
		})
		u.arrayTypes[elem] = h
		return h, nil
	default:
		h, ok := u.typesByName[ref.Name]
		if !ok {
			return Handle{}, notReflectable(ref.Loc, "unresolved type %s referenced by %s", ref.Name, owner)
		}
		return h, nil
	}
}

// append adds an object to the arena and returns its handle
func (u *Unit) append(obj MetaObject) Handle {
	h := Handle{unit: u.id, index: int32(len(u.objects))}
	u.objects = append(u.objects, obj)
	return h
}

// Object resolves a handle to its meta-object for read-only access. Passing
// a stale or out-of-arena handle fails with InvalidHandle.
func (u *Unit) Object(h Handle) (*MetaObject, error) {
	if h.unit != u.id || h.index < 1 || int(h.index) >= len(u.objects) {
		return nil, invalidHandle(h)
	}
	return &u.objects[h.index], nil
}

// MembersOf returns the ordered member handles of a type, in declaration
// order. The returned slice is a copy and can be iterated any number of
// times with identical results.
func (u *Unit) MembersOf(h Handle) ([]Handle, error) {
	obj, err := u.Object(h)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindType && obj.Kind != KindNamespace {
		return nil, notReflectable(obj.Loc, "%s %s has no members", obj.Kind, obj.Name)
	}
	members := make([]Handle, len(obj.members))
	copy(members, obj.members)
	return members, nil
}

// DeclaredTypes returns the handles of all declared (non-primitive) types in
// reflection order
func (u *Unit) DeclaredTypes() []Handle {
	declared := make([]Handle, len(u.declared))
	copy(declared, u.declared)
	return declared
}

// Seal marks the arena complete. After sealing, the arena is read-only and
// safe for concurrent readers; further Reflect calls fail.
func (u *Unit) Seal() {
	u.sealed.Store(true)
}

// Sealed reports whether the arena has been sealed
func (u *Unit) Sealed() bool {
	return u.sealed.Load()
}

// valueEmbeds reports the named type a data member embeds by value, if any.
// Sequence members reference their elements indirectly and do not embed.
func valueEmbeds(m *parser.MemberDecl) (string, bool) {
	if m.IsFunction {
		return "", false
	}
	if m.Type.Kind != parser.RefNamed {
		return "", false
	}
	return m.Type.Name, true
}
