// Package store persists capture records to a SQLite table whose
// columns are fixed by the driving script.
//
// Every operation opens its own connection and closes it before
// returning. Several workers may append to the same file; the busy
// timeout serializes them.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/model"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// TargetColumn holds the target address of every row.
const TargetColumn = "ip"

// Schema is a table and its capture columns, in script order. The
// target column is implied.
type Schema struct {
	Table   string
	Columns []string
}

// SchemaFor derives the schema of table from the get actions of sc.
func SchemaFor(table string, sc *model.Script) (Schema, error) {
	if table == "" {
		return Schema{}, fmt.Errorf("empty table name")
	}
	seen := map[string]bool{TargetColumn: true}
	schema := Schema{Table: table}
	for _, title := range sc.CaptureTitles() {
		key := strings.ToLower(title)
		if seen[key] {
			return Schema{}, fmt.Errorf("capture title %q collides with another column", title)
		}
		seen[key] = true
		schema.Columns = append(schema.Columns, title)
	}
	return schema, nil
}

// Row is one stored record. Values omits NULL columns.
type Row struct {
	Columns []string
	Values  map[string]string
}

// Store is a SQLite database file.
type Store struct {
	path   string
	logger *slog.Logger
}

// Open returns a Store for the database at path. A nil logger discards.
// The file is created on first write; queries never create it.
func Open(path string, logger *slog.Logger) *Store {
	logger = logging.Discard(logger)
	return &Store{path: path, logger: logger}
}

func (s *Store) conn(ctx context.Context) (*sqlite.Conn, error) {
	return s.open(ctx, sqlite.OpenReadWrite, sqlite.OpenCreate)
}

// readConn opens the database read-only. It returns nil, nil when the
// file does not exist.
func (s *Store) readConn(ctx context.Context) (*sqlite.Conn, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return s.open(ctx, sqlite.OpenReadOnly)
}

func (s *Store) open(ctx context.Context, flags ...sqlite.OpenFlags) (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(s.path, flags...)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	conn.SetInterrupt(ctx.Done())
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configuring %s: %w", s.path, err)
	}
	return conn, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// InitSchema creates the table if needed and adds any schema column the
// table lacks. Existing columns and rows are kept.
func (s *Store) InitSchema(ctx context.Context, schema Schema) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cols := []string{quote(TargetColumn) + " TEXT"}
	for _, c := range schema.Columns {
		cols = append(cols, quote(c)+" TEXT")
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(schema.Table), strings.Join(cols, ", "))
	if err := sqlitex.ExecuteTransient(conn, create, nil); err != nil {
		return fmt.Errorf("creating table %s: %w", schema.Table, err)
	}

	existing, err := columns(conn, schema.Table)
	if err != nil {
		return err
	}
	for _, c := range schema.Columns {
		if existing[strings.ToLower(c)] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quote(schema.Table), quote(c))
		if err := sqlitex.ExecuteTransient(conn, alter, nil); err != nil {
			return fmt.Errorf("adding column %s: %w", c, err)
		}
		s.logger.Info("added result column", "table", schema.Table, "column", c)
	}
	return nil
}

func columns(conn *sqlite.Conn, table string) (map[string]bool, error) {
	cols := make(map[string]bool)
	err := sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)), &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			cols[strings.ToLower(stmt.ColumnText(1))] = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	return cols, nil
}

// Append inserts one row for rec. Only the schema columns present in
// rec are written; the rest stay NULL. Values outside the schema are
// dropped.
func (s *Store) Append(ctx context.Context, schema Schema, rec *model.CaptureRecord) error {
	names := []string{quote(TargetColumn)}
	args := []any{rec.Target}
	for _, c := range schema.Columns {
		v, ok := rec.Values[c]
		if !ok {
			continue
		}
		names = append(names, quote(c))
		args = append(args, v)
	}
	for title := range rec.Values {
		if !schema.has(title) {
			s.logger.Warn("capture outside schema dropped", "table", schema.Table, "title", title)
		}
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(schema.Table), strings.Join(names, ", "), placeholders)
	if err := sqlitex.Execute(conn, insert, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("inserting into %s: %w", schema.Table, err)
	}
	s.logger.Debug("capture stored", "table", schema.Table, "target", rec.Target, "columns", len(names)-1)
	return nil
}

func (sc Schema) has(title string) bool {
	for _, c := range sc.Columns {
		if c == title {
			return true
		}
	}
	return false
}

// Latest returns the most recent row for target, or nil when the table
// is missing or has no row for it.
func (s *Store) Latest(ctx context.Context, table, target string) (*Row, error) {
	conn, err := s.readConn(ctx)
	if err != nil || conn == nil {
		return nil, err
	}
	defer conn.Close()

	if ok, err := tableExists(conn, table); err != nil || !ok {
		return nil, err
	}

	var row *Row
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY rowid DESC LIMIT 1", quote(table), quote(TargetColumn))
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{target},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = &Row{Values: make(map[string]string)}
			for i := 0; i < stmt.ColumnCount(); i++ {
				name := stmt.ColumnName(i)
				row.Columns = append(row.Columns, name)
				if stmt.ColumnType(i) != sqlite.TypeNull {
					row.Values[name] = stmt.ColumnText(i)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	return row, nil
}

// Count returns the number of rows stored for target. A missing
// database or table counts as zero rows.
func (s *Store) Count(ctx context.Context, table, target string) (int, error) {
	conn, err := s.readConn(ctx)
	if err != nil || conn == nil {
		return 0, err
	}
	defer conn.Close()

	if ok, err := tableExists(conn, table); err != nil || !ok {
		return 0, err
	}

	n := 0
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = ?", quote(table), quote(TargetColumn))
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{target},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func tableExists(conn *sqlite.Conn, table string) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", &sqlitex.ExecOptions{
		Args: []any{table},
		ResultFunc: func(*sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("looking up table %s: %w", table, err)
	}
	return exists, nil
}
