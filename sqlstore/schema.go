package sqlstore

import (
	"fmt"
	"strings"

	"github.com/ridge/quarry/indices"
)

// sideTable returns the name of the table holding the entries of an index
func sideTable(table, index string) string {
	return table + "__idx_" + index
}

// layout holds the names and statements of one model's tables
type layout struct {
	dialect Dialect
	table   string
	indices []indexLayout
	byName  map[string]int
}

type indexLayout struct {
	name   string
	unique bool
	table  string
}

func newLayout[M any](dialect Dialect, table string, registry *indices.Registry[M]) layout {
	l := layout{
		dialect: dialect,
		table:   table,
		byName:  map[string]int{},
	}
	for _, def := range registry.All() {
		l.byName[def.Name] = len(l.indices)
		l.indices = append(l.indices, indexLayout{
			name:   def.Name,
			unique: def.Unique,
			table:  sideTable(table, def.Name),
		})
	}
	return l
}

func (l layout) side(index string) indexLayout {
	return l.indices[l.byName[index]]
}

// p returns the n-th placeholder
func (l layout) p(n int) string {
	return l.dialect.Placeholder(n)
}

// ddl returns the statements creating all tables and indices
func (l layout) ddl() []string {
	d := l.dialect
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	document %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, l.table, d.BinaryType(), d.TimestampType(), d.TimestampType()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at)`, l.table, l.table),
	}
	for _, idx := range l.indices {
		columns := []string{
			fmt.Sprintf("index_key %s NOT NULL", d.BinaryType()),
			fmt.Sprintf("record_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE", l.table),
		}
		if idx.unique {
			columns = append(columns, "UNIQUE (index_key)")
		}
		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", idx.table, strings.Join(columns, ",\n\t")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_key ON %s (index_key)", idx.table, idx.table),
		)
		if !idx.unique {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_record ON %s (record_id)", idx.table, idx.table))
		}
	}
	return stmts
}

func (l layout) insertRecord() string {
	return fmt.Sprintf("INSERT INTO %s (id, document, created_at, updated_at) VALUES (%s, %s, %s, %s)",
		l.table, l.p(1), l.p(2), l.p(3), l.p(4))
}

func (l layout) updateRecord() string {
	return fmt.Sprintf("UPDATE %s SET document = %s, updated_at = %s WHERE id = %s",
		l.table, l.p(1), l.p(2), l.p(3))
}

func (l layout) deleteRecord() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", l.table, l.p(1))
}

func (l layout) selectRecord() string {
	return fmt.Sprintf("SELECT document FROM %s WHERE id = %s", l.table, l.p(1))
}

func (l layout) existsRecord() string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE id = %s", l.table, l.p(1))
}

func (l layout) countRecords() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", l.table)
}

func (l layout) listRecords() string {
	return fmt.Sprintf("SELECT document FROM %s ORDER BY updated_at DESC, id DESC LIMIT %s OFFSET %s",
		l.table, l.p(1), l.p(2))
}

func (idx indexLayout) insertEntry(l layout) string {
	return fmt.Sprintf("INSERT INTO %s (index_key, record_id) VALUES (%s, %s)", idx.table, l.p(1), l.p(2))
}

func (idx indexLayout) deleteEntries(l layout) string {
	return fmt.Sprintf("DELETE FROM %s WHERE record_id = %s", idx.table, l.p(1))
}

func (idx indexLayout) selectByKey(l layout) string {
	return fmt.Sprintf(`SELECT m.document FROM %s m
JOIN %s i ON i.record_id = m.id
WHERE i.index_key = %s
ORDER BY m.updated_at DESC, m.id DESC`, l.table, idx.table, l.p(1))
}

func (idx indexLayout) countByKey(l layout) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE index_key = %s", idx.table, l.p(1))
}
