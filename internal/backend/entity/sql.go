package entity

import (
	"fmt"
	"strings"
)

// CreateTableSQL renders the DDL for the schema in the sqlite dialect
func (s *Schema) CreateTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", s.Table)
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteByte(' ')
		b.WriteString(col.SQLType)
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
			if col.Auto {
				b.WriteString(" AUTOINCREMENT")
			}
		}
		if col.Unique {
			b.WriteString(" UNIQUE")
		}
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.RefTable != "" {
			fmt.Fprintf(&b, " REFERENCES %s(%s)", col.RefTable, col.RefColumn)
		}
	}
	b.WriteString(")")
	return b.String()
}

// insertColumns returns the columns written on insert, skipping
// auto-assigned keys
func (s *Schema) insertColumns() []Column {
	cols := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.PrimaryKey && c.Auto {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// nonKeyColumns returns the columns updated by UPDATE statements
func (s *Schema) nonKeyColumns() []Column {
	cols := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.PrimaryKey {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}

// InsertSQL renders the parameterized INSERT for the schema. An entity whose
// only column is an auto-assigned key has nothing to bind, so the row is
// inserted with defaults.
func (s *Schema) InsertSQL() string {
	cols := s.insertColumns()
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", s.Table)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(columnNames(cols), ", "), placeholders(len(cols)))
}

// InsertOrIgnoreSQL renders an INSERT that leaves an already-keyed row alone
func (s *Schema) InsertOrIgnoreSQL() string {
	return "INSERT OR IGNORE" + strings.TrimPrefix(s.InsertSQL(), "INSERT")
}

// UpdateSQL renders the parameterized UPDATE keyed on the primary key
func (s *Schema) UpdateSQL() string {
	pk, _ := s.PrimaryKey()
	sets := make([]string, 0, len(s.Columns))
	for _, c := range s.nonKeyColumns() {
		sets = append(sets, c.Name+" = ?")
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		s.Table, strings.Join(sets, ", "), pk.Name)
}

// DeleteSQL renders the parameterized DELETE keyed on the primary key
func (s *Schema) DeleteSQL() string {
	pk, _ := s.PrimaryKey()
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.Table, pk.Name)
}

// SelectSQL renders the SELECT of all columns without a predicate
func (s *Schema) SelectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(columnNames(s.Columns), ", "), s.Table)
}

// SelectBySQL renders the parameterized SELECT filtered on one column
func (s *Schema) SelectBySQL(column string) string {
	return fmt.Sprintf("%s WHERE %s = ?", s.SelectSQL(), column)
}
