package entity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/metaforge-lang/metaforge/internal/backend/serial"
)

// Store runs the schema's statements against a live database, reading and
// writing build-time values. The generated declarations embed the same SQL;
// the store exists for tooling and tests that work with values directly.
type Store struct {
	db     *sql.DB
	schema *Schema
}

// NewStore binds a derived schema to a database handle
func NewStore(db *sql.DB, schema *Schema) *Store {
	return &Store{db: db, schema: schema}
}

// Schema returns the bound schema
func (s *Store) Schema() *Schema {
	return s.schema
}

// EnsureTable creates the entity's table when it does not exist
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.schema.CreateTableSQL())
	return err
}

// Insert writes a value as a new row and returns the database-assigned key
// for auto-keyed schemas
func (s *Store) Insert(ctx context.Context, v *serial.Value) (int64, error) {
	cols := s.schema.insertColumns()
	args, err := bindArgs(cols, v)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.schema.InsertSQL(), args...)
	if err != nil {
		return 0, err
	}
	pk, ok := s.schema.PrimaryKey()
	if !ok || !pk.Auto {
		return 0, nil
	}
	return res.LastInsertId()
}

// Update rewrites the row identified by the value's primary key
func (s *Store) Update(ctx context.Context, v *serial.Value) error {
	pk, _ := s.schema.PrimaryKey()
	args, err := bindArgs(s.schema.nonKeyColumns(), v)
	if err != nil {
		return err
	}
	key, ok := v.Get(pk.Name)
	if !ok {
		return fmt.Errorf("value has no primary key %s", pk.Name)
	}
	_, err = s.db.ExecContext(ctx, s.schema.UpdateSQL(), append(args, key)...)
	return err
}

// Delete removes the row with the given primary key
func (s *Store) Delete(ctx context.Context, key interface{}) error {
	_, err := s.db.ExecContext(ctx, s.schema.DeleteSQL(), key)
	return err
}

// Find loads the row with the given primary key, or sql.ErrNoRows
func (s *Store) Find(ctx context.Context, key interface{}) (*serial.Value, error) {
	pk, ok := s.schema.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("entity %s has no primary key", s.schema.TypeName)
	}
	row := s.db.QueryRowContext(ctx, s.schema.SelectBySQL(pk.Name), key)
	return s.scanRow(row.Scan)
}

// FindAll loads every row of the entity's table
func (s *Store) FindAll(ctx context.Context) ([]*serial.Value, error) {
	rows, err := s.db.QueryContext(ctx, s.schema.SelectSQL())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRows(rows)
}

// FindBy loads the rows whose named member equals the given value
func (s *Store) FindBy(ctx context.Context, member string, value interface{}) ([]*serial.Value, error) {
	col, ok := s.schema.Column(member)
	if !ok {
		return nil, fmt.Errorf("entity %s has no member %s", s.schema.TypeName, member)
	}
	rows, err := s.db.QueryContext(ctx, s.schema.SelectBySQL(col.Name), value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRows(rows)
}

func (s *Store) scanRows(rows *sql.Rows) ([]*serial.Value, error) {
	var values []*serial.Value
	for rows.Next() {
		v, err := s.scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// scanRow scans one row into a value using typed destinations per column
func (s *Store) scanRow(scan func(...interface{}) error) (*serial.Value, error) {
	dests := make([]interface{}, len(s.schema.Columns))
	for i, col := range s.schema.Columns {
		switch col.class {
		case colInt:
			dests[i] = new(int64)
		case colFloat:
			dests[i] = new(float64)
		case colString:
			dests[i] = new(string)
		case colBool:
			dests[i] = new(bool)
		}
	}
	if err := scan(dests...); err != nil {
		return nil, err
	}
	v := serial.NewValue(s.schema.Type)
	for i, col := range s.schema.Columns {
		switch d := dests[i].(type) {
		case *int64:
			v.Set(col.Name, *d)
		case *float64:
			v.Set(col.Name, *d)
		case *string:
			v.Set(col.Name, *d)
		case *bool:
			v.Set(col.Name, *d)
		}
	}
	return v, nil
}

// bindArgs pulls the columns' values out of a build-time value in column
// order
func bindArgs(cols []Column, v *serial.Value) ([]interface{}, error) {
	args := make([]interface{}, 0, len(cols))
	for _, col := range cols {
		val, ok := v.Get(col.Name)
		if !ok {
			return nil, fmt.Errorf("value has no data for member %s", col.Name)
		}
		args = append(args, val)
	}
	return args, nil
}
