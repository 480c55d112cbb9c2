package entity

import (
	"fmt"
	"strings"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/meta/compose"
	"github.com/metaforge-lang/metaforge/internal/meta/synth"
)

// MetaclassName is the name the entity metaclass registers under
const MetaclassName = "entity"

// NewMetaclass builds the entity metaclass generator. The first application
// parameter names the table; without one the declared type name is used.
// Every entity needs exactly one member carrying the primaryKey attribute.
func NewMetaclass() compose.Generator {
	return func(em *synth.Emitter, app compose.Application) error {
		isClass, err := em.Engine().IsClass(em.Target())
		if err != nil {
			return err
		}
		if err := em.Require(isClass, "entity applies to class types only, %s is not one", em.TargetName()); err != nil {
			return err
		}

		table := ""
		if len(app.Params) > 0 {
			table = app.Params[0].Str
		}
		schema, err := SchemaOf(em.Engine(), em.Target(), table)
		if err != nil {
			if me, ok := err.(*MappingError); ok {
				return em.Errorf(me.Code, "%s", me.Message)
			}
			return err
		}
		pk, ok := schema.PrimaryKey()
		if !ok {
			return em.Errorf(errors.ErrMissingPrimaryKey,
				"entity %s declares no member with the primaryKey attribute", em.TargetName())
		}

		emitSchemaSQL(em, schema)
		emitSave(em, schema, pk)
		emitInsert(em, schema, pk)
		emitUpdate(em, schema, pk)
		emitDelete(em, schema, pk)
		emitFind(em, schema, pk)
		emitFindAll(em, schema)
		for _, col := range schema.Columns {
			if col.PrimaryKey {
				continue
			}
			emitFindBy(em, schema, col)
		}
		return nil
	}
}

func emitSchemaSQL(em *synth.Emitter, schema *Schema) {
	target := em.TargetName()
	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    "schema_sql",
		GoName:    target + "SchemaSQL",
		Signature: "() string",
		Body: []string{
			fmt.Sprintf("return %q", schema.CreateTableSQL()),
		},
		Doc: fmt.Sprintf("%sSchemaSQL returns the DDL for the %s table", target, schema.Table),
	})
}

// fieldArgs renders the receiver-qualified argument list for a column set
func fieldArgs(recv string, cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = recv + "." + c.GoField
	}
	return strings.Join(parts, ", ")
}

// execArgs renders the trailing argument list of a db.Exec call, empty when
// the statement binds nothing
func execArgs(args string) string {
	if args == "" {
		return ""
	}
	return ", " + args
}

func emitSave(em *synth.Emitter, schema *Schema, pk Column) {
	recv := synth.ReceiverName(em.TargetName())
	insertArgs := execArgs(fieldArgs(recv, schema.insertColumns()))
	nonKey := schema.nonKeyColumns()
	updateArgs := execArgs(fieldArgs(recv, nonKey) + ", " + recv + "." + pk.GoField)

	var body []string
	switch {
	case pk.Auto && len(nonKey) == 0:
		// a zero key means the row does not exist yet; with no other
		// columns there is nothing to update once it does
		body = []string{
			fmt.Sprintf("if %s.%s != 0 {", recv, pk.GoField),
			"\treturn nil",
			"}",
			fmt.Sprintf("res, err := db.Exec(%q%s)", schema.InsertSQL(), insertArgs),
			"if err != nil {",
			"\treturn err",
			"}",
			"id, err := res.LastInsertId()",
			"if err != nil {",
			"\treturn err",
			"}",
			fmt.Sprintf("%s.%s = id", recv, pk.GoField),
			"return nil",
		}
	case pk.Auto:
		body = []string{
			fmt.Sprintf("if %s.%s == 0 {", recv, pk.GoField),
			fmt.Sprintf("\tres, err := db.Exec(%q%s)", schema.InsertSQL(), insertArgs),
			"\tif err != nil {",
			"\t\treturn err",
			"\t}",
			"\tid, err := res.LastInsertId()",
			"\tif err != nil {",
			"\t\treturn err",
			"\t}",
			fmt.Sprintf("\t%s.%s = id", recv, pk.GoField),
			"\treturn nil",
			"}",
			fmt.Sprintf("_, err := db.Exec(%q%s)", schema.UpdateSQL(), updateArgs),
			"return err",
		}
	case len(nonKey) == 0:
		body = []string{
			fmt.Sprintf("_, err := db.Exec(%q%s)", schema.InsertOrIgnoreSQL(), insertArgs),
			"return err",
		}
	default:
		body = []string{
			fmt.Sprintf("res, err := db.Exec(%q%s)", schema.UpdateSQL(), updateArgs),
			"if err != nil {",
			"\treturn err",
			"}",
			"n, err := res.RowsAffected()",
			"if err != nil {",
			"\treturn err",
			"}",
			"if n == 0 {",
			fmt.Sprintf("\t_, err = db.Exec(%q%s)", schema.InsertSQL(), insertArgs),
			"\treturn err",
			"}",
			"return nil",
		}
	}

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "save",
		GoName:    "Save",
		Signature: "(db *sql.DB) error",
		Body:      body,
		Doc:       fmt.Sprintf("Save writes the %s, inserting a new row or updating the existing one", em.TargetName()),
		Imports:   []string{"database/sql"},
	})
}

func emitInsert(em *synth.Emitter, schema *Schema, pk Column) {
	recv := synth.ReceiverName(em.TargetName())
	insertArgs := execArgs(fieldArgs(recv, schema.insertColumns()))

	var body []string
	if pk.Auto {
		body = []string{
			fmt.Sprintf("res, err := db.Exec(%q%s)", schema.InsertSQL(), insertArgs),
			"if err != nil {",
			"\treturn err",
			"}",
			"id, err := res.LastInsertId()",
			"if err != nil {",
			"\treturn err",
			"}",
			fmt.Sprintf("%s.%s = id", recv, pk.GoField),
			"return nil",
		}
	} else {
		body = []string{
			fmt.Sprintf("_, err := db.Exec(%q%s)", schema.InsertSQL(), insertArgs),
			"return err",
		}
	}

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "insert",
		GoName:    "Insert",
		Signature: "(db *sql.DB) error",
		Body:      body,
		Doc:       fmt.Sprintf("Insert writes the %s as a new row", em.TargetName()),
		Imports:   []string{"database/sql"},
	})
}

func emitUpdate(em *synth.Emitter, schema *Schema, pk Column) {
	nonKey := schema.nonKeyColumns()
	if len(nonKey) == 0 {
		// a key-only entity has no columns an UPDATE could set
		return
	}
	recv := synth.ReceiverName(em.TargetName())
	updateArgs := fieldArgs(recv, nonKey) + ", " + recv + "." + pk.GoField

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "update",
		GoName:    "Update",
		Signature: "(db *sql.DB) error",
		Body: []string{
			fmt.Sprintf("_, err := db.Exec(%q, %s)", schema.UpdateSQL(), updateArgs),
			"return err",
		},
		Doc:     fmt.Sprintf("Update rewrites the row holding this %s", em.TargetName()),
		Imports: []string{"database/sql"},
	})
}

func emitDelete(em *synth.Emitter, schema *Schema, pk Column) {
	recv := synth.ReceiverName(em.TargetName())

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentMethod,
		Symbol:    "delete",
		GoName:    "Delete",
		Signature: "(db *sql.DB) error",
		Body: []string{
			fmt.Sprintf("_, err := db.Exec(%q, %s.%s)", schema.DeleteSQL(), recv, pk.GoField),
			"return err",
		},
		Doc:     fmt.Sprintf("Delete removes the row holding this %s", em.TargetName()),
		Imports: []string{"database/sql"},
	})
}

// scanDests renders &v.Field destinations for every column
func scanDests(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "&v." + c.GoField
	}
	return strings.Join(parts, ", ")
}

func emitFind(em *synth.Emitter, schema *Schema, pk Column) {
	target := em.TargetName()

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    "find",
		GoName:    "Find" + target,
		Signature: fmt.Sprintf("(db *sql.DB, key %s) (*%s, error)", goColType(pk.class), target),
		Body: []string{
			fmt.Sprintf("var v %s", target),
			fmt.Sprintf("row := db.QueryRow(%q, key)", schema.SelectBySQL(pk.Name)),
			fmt.Sprintf("if err := row.Scan(%s); err != nil {", scanDests(schema.Columns)),
			"\treturn nil, err",
			"}",
			"return &v, nil",
		},
		Doc:     fmt.Sprintf("Find%s loads the %s with the given %s", target, target, pk.Name),
		Imports: []string{"database/sql"},
	})
}

func emitFindAll(em *synth.Emitter, schema *Schema) {
	target := em.TargetName()

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    "find_all",
		GoName:    "FindAll" + target,
		Signature: fmt.Sprintf("(db *sql.DB) ([]*%s, error)", target),
		Body:      findManyBody(schema, target, schema.SelectSQL(), ""),
		Doc:       fmt.Sprintf("FindAll%s loads every row of the %s table", target, schema.Table),
		Imports:   []string{"database/sql"},
	})
}

func emitFindBy(em *synth.Emitter, schema *Schema, col Column) {
	target := em.TargetName()
	symbol := "find_by_" + col.Name

	em.Declare(synth.Fragment{
		Kind:      synth.FragmentFunc,
		Symbol:    symbol,
		GoName:    fmt.Sprintf("Find%sBy%s", target, col.GoField),
		Signature: fmt.Sprintf("(db *sql.DB, value %s) ([]*%s, error)", goColType(col.class), target),
		Body:      findManyBody(schema, target, schema.SelectBySQL(col.Name), ", value"),
		Doc:       fmt.Sprintf("Find%sBy%s loads the rows whose %s equals value", target, col.GoField, col.Name),
		Imports:   []string{"database/sql"},
	})
}

// findManyBody renders a query-scan-append loop shared by find_all and
// find_by_<member>
func findManyBody(schema *Schema, target, query, extraArgs string) []string {
	return []string{
		fmt.Sprintf("rows, err := db.Query(%q%s)", query, extraArgs),
		"if err != nil {",
		"\treturn nil, err",
		"}",
		"defer rows.Close()",
		fmt.Sprintf("var out []*%s", target),
		"for rows.Next() {",
		fmt.Sprintf("\tvar v %s", target),
		fmt.Sprintf("\tif err := rows.Scan(%s); err != nil {", scanDests(schema.Columns)),
		"\t\treturn nil, err",
		"\t}",
		"\tout = append(out, &v)",
		"}",
		"return out, rows.Err()",
	}
}

// goColType maps a column class to the generated parameter type
func goColType(class colClass) string {
	switch class {
	case colInt:
		return "int64"
	case colFloat:
		return "float64"
	case colString:
		return "string"
	case colBool:
		return "bool"
	default:
		return "interface{}"
	}
}
