package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

const tableName = "stock_data"

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name       string
	driver     string
	dateType   string
	numberType string
	idType     string
	// placeholder returns the bind marker for the n-th (1-based) argument.
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        DriverSQLite,
		driver:      "sqlite",
		dateType:    "TEXT",
		numberType:  "REAL",
		idType:      "INTEGER PRIMARY KEY",
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        DriverPostgres,
		driver:      "postgres",
		dateType:    "DATE",
		numberType:  "DOUBLE PRECISION",
		idType:      "BIGINT PRIMARY KEY",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	columns []string
	logger  *slog.Logger
}

// OpenSQLite opens (or creates) the SQLite database at opts.DSN.
func OpenSQLite(ctx context.Context, opts Options, logger *slog.Logger) (*SQLStore, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = "market.db"
	}
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; WAL lets readers proceed during ingestion.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return newSQLStore(db, sqliteDialect, logger), nil
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(ctx context.Context, opts Options, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return newSQLStore(db, postgresDialect, logger), nil
}

func newSQLStore(db *sql.DB, d dialect, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	columns := append([]string{domain.ColumnID, domain.ColumnDate}, domain.NumericColumnNames()...)
	logger = logger.With(slog.String("component", "store"), slog.String("driver", d.name))
	logger.Info("store opened")
	return &SQLStore{db: db, dialect: d, columns: columns, logger: logger}
}

// InitSchema creates the table and its date index when missing.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	defs := []string{
		fmt.Sprintf("%s %s", domain.ColumnID, s.dialect.idType),
		fmt.Sprintf("%s %s NOT NULL", domain.ColumnDate, s.dialect.dateType),
	}
	for _, name := range domain.NumericColumnNames() {
		defs = append(defs, fmt.Sprintf("%s %s", name, s.dialect.numberType))
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", tableName, strings.Join(defs, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_date ON %s(%s)", tableName, tableName, domain.ColumnDate),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLStore) LatestRows(ctx context.Context, limit int) ([]domain.DailyRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC, %s DESC LIMIT %s",
		s.columnList(), tableName, domain.ColumnDate, domain.ColumnID, s.dialect.placeholder(1))
	return s.query(ctx, query, limit)
}

func (s *SQLStore) Rows(ctx context.Context, filter domain.RowFilter) ([]domain.DailyRow, int, error) {
	where, args := s.where(filter)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", tableName, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rows: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC, %s ASC LIMIT %s OFFSET %s",
		s.columnList(), tableName, where, domain.ColumnDate, domain.ColumnID,
		s.dialect.placeholder(len(args)+1), s.dialect.placeholder(len(args)+2))
	limit := filter.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *SQLStore) RowByID(ctx context.Context, id int64) (domain.DailyRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.columnList(), tableName, domain.ColumnID, s.dialect.placeholder(1))
	rows, err := s.query(ctx, query, id)
	if err != nil {
		return domain.DailyRow{}, err
	}
	if len(rows) == 0 {
		return domain.DailyRow{}, ErrRowNotFound
	}
	return rows[0], nil
}

func (s *SQLStore) MostRecentDate(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", domain.ColumnDate, tableName)
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("query most recent date: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, ErrEmpty
	}
	return parseStoredDate(raw.String)
}

// ReplaceRows deletes every row and inserts rows in one transaction.
func (s *SQLStore) ReplaceRows(ctx context.Context, rows []domain.DailyRow) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+tableName); err != nil {
		return fmt.Errorf("clear %s: %w", tableName, err)
	}

	marks := make([]string, len(s.columns))
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, s.columnList(), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err = stmt.ExecContext(ctx, rowArgs(&rows[i])...); err != nil {
			return fmt.Errorf("insert row %d: %w", rows[i].ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.InfoContext(ctx, "rows replaced", slog.Int("rows", len(rows)))
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) columnList() string {
	return strings.Join(s.columns, ", ")
}

func (s *SQLStore) where(f domain.RowFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(op string, t *time.Time) {
		if t == nil {
			return
		}
		args = append(args, t.Format(DateLayout))
		conds = append(conds, fmt.Sprintf("%s %s %s", domain.ColumnDate, op, s.dialect.placeholder(len(args))))
	}
	add("=", f.DateEq)
	add(">=", f.DateGte)
	add("<=", f.DateLte)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]domain.DailyRow, error) {
	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rs.Close()

	out := []domain.DailyRow{}
	for rs.Next() {
		var (
			row  domain.DailyRow
			date string
		)
		refs := row.NumericColumns()
		dest := make([]any, 0, len(refs)+2)
		dest = append(dest, &row.ID, &date)
		for _, ref := range refs {
			dest = append(dest, ref.Field)
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", tableName, err)
		}
		if row.Date, err = parseStoredDate(date); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", tableName, err)
	}
	return out, nil
}

func rowArgs(row *domain.DailyRow) []any {
	refs := row.NumericColumns()
	args := make([]any, 0, len(refs)+2)
	args = append(args, row.ID, row.Date.Format(DateLayout))
	for _, ref := range refs {
		args = append(args, *ref.Field)
	}
	return args
}

// parseStoredDate accepts the plain day layout written by this package and
// the RFC 3339 form database/sql produces when a DATE is scanned as text.
func parseStoredDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return DayOf(t), nil
	}
	if len(raw) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, raw[:len(DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse stored date %q", raw)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
