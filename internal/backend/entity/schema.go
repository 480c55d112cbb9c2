// Package entity implements the entity-mapping backend: relational schema
// derivation from reflected declarations, SQL generation, a runtime store
// over database/sql, and the entity metaclass that synthesizes persistence
// declarations (save, find, find_all, find_by_<member>, schema_sql).
package entity

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
	"github.com/metaforge-lang/metaforge/internal/meta/query"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// Column is one mapped data member
type Column struct {
	Name    string // column name, the declared member name
	GoField string // generated struct field
	Member  model.Handle

	SQLType    string
	PrimaryKey bool
	Auto       bool // auto-assigned key, skipped on insert
	Unique     bool
	NotNull    bool

	// RefTable/RefColumn carry a foreignKey("table", "column") attribute
	RefTable  string
	RefColumn string

	// class drives parameter binding and row scanning
	class colClass
}

type colClass int

const (
	colInt colClass = iota
	colFloat
	colString
	colBool
)

// Schema is the relational mapping of one entity type
type Schema struct {
	Table    string
	Type     model.Handle
	TypeName string
	Columns  []Column
}

// PrimaryKey returns the primary key column
func (s *Schema) PrimaryKey() (Column, bool) {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// Column looks up a column by member name
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// MappingError is an entity-layer failure, fatal for the affected target
// only
type MappingError struct {
	Code    string
	Message string
	Target  string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %s (entity %s)", e.Code, e.Message, e.Target)
}

// IsMissingPrimaryKey reports whether err is a MissingPrimaryKey failure
func IsMissingPrimaryKey(err error) bool {
	me, ok := err.(*MappingError)
	return ok && me.Code == errors.ErrMissingPrimaryKey
}

// IsUnsupportedMemberType reports whether err is an UnsupportedMemberType
// failure
func IsUnsupportedMemberType(err error) bool {
	me, ok := err.(*MappingError)
	return ok && me.Code == errors.ErrUnsupportedMemberType
}

// SchemaOf derives the relational schema for a reflected entity type.
// Primitive members map to INTEGER, REAL, TEXT (or VARCHAR(n) under a
// maxLength attribute) and BOOLEAN; sequence and nested object members have
// no relational mapping and fail with UnsupportedMemberType.
func SchemaOf(engine *query.Engine, target model.Handle, table string) (*Schema, error) {
	typeName, err := engine.NameOf(target)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = typeName
	}
	schema := &Schema{
		Table:    table,
		Type:     target,
		TypeName: typeName,
	}

	members, err := engine.DataMembersOf(target)
	if err != nil {
		return nil, err
	}
	for member := range members {
		col, err := columnOf(engine, member, typeName)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, col)
	}

	if len(schema.Columns) == 0 {
		return nil, &MappingError{
			Code:    errors.ErrUnsupportedMemberType,
			Message: "entity type has no mappable data members",
			Target:  typeName,
		}
	}
	return schema, nil
}

func columnOf(engine *query.Engine, member model.Handle, typeName string) (Column, error) {
	name, err := engine.NameOf(member)
	if err != nil {
		return Column{}, err
	}
	memberType, err := engine.TypeOf(member)
	if err != nil {
		return Column{}, err
	}
	attrs, err := engine.AttributesOf(member)
	if err != nil {
		return Column{}, err
	}

	col := Column{
		Name:    name,
		GoField: synth.GoName(name),
		Member:  member,
	}

	switch {
	case isFloat(engine, memberType):
		col.SQLType = "REAL"
		col.class = colFloat
	case isArithmetic(engine, memberType):
		col.SQLType = "INTEGER"
		col.class = colInt
	case isString(engine, memberType):
		col.SQLType = "TEXT"
		col.class = colString
		if attr, ok := attrs.Get("maxLength"); ok {
			col.SQLType = fmt.Sprintf("VARCHAR(%d)", attr.IntArg(0, 255))
		}
	case isBool(engine, memberType):
		col.SQLType = "BOOLEAN"
		col.class = colBool
	default:
		memberTypeName, nameErr := engine.NameOf(memberType)
		if nameErr != nil {
			memberTypeName = "<invalid>"
		}
		return Column{}, &MappingError{
			Code:    errors.ErrUnsupportedMemberType,
			Message: fmt.Sprintf("member %s has type %s, which has no relational mapping", name, memberTypeName),
			Target:  typeName,
		}
	}

	col.PrimaryKey = attrs.Has("primaryKey")
	col.Auto = attrs.Has("auto")
	col.Unique = attrs.Has("unique")
	col.NotNull = attrs.Has("notNull")
	if attr, ok := attrs.Get("foreignKey"); ok {
		col.RefTable = attr.StringArg(0, "")
		col.RefColumn = attr.StringArg(1, "id")
	}
	return col, nil
}

func isFloat(e *query.Engine, t model.Handle) bool {
	ok, err := e.IsFloat(t)
	return err == nil && ok
}

func isArithmetic(e *query.Engine, t model.Handle) bool {
	ok, err := e.IsArithmetic(t)
	return err == nil && ok
}

func isString(e *query.Engine, t model.Handle) bool {
	ok, err := e.IsString(t)
	return err == nil && ok
}

func isBool(e *query.Engine, t model.Handle) bool {
	ok, err := e.IsBool(t)
	return err == nil && ok
}
