// Package ledger persists comparison reports in SQLite so runs can be
// reviewed after the fact. A Store is also a sink.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/hazyhaar/viswatch/internal/dbopen"
	"github.com/hazyhaar/viswatch/match"
)

// Store is the ledger database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the ledger at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Report records r. It makes Store usable as a sink.
func (s *Store) Report(ctx context.Context, r match.Report) error {
	return s.Record(ctx, r)
}

// Record inserts r. Recording the same ID twice is an error.
func (s *Store) Record(ctx context.Context, r match.Report) error {
	if r.ID == "" {
		return errors.New("ledger: record: empty id")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	res := r.Result

	var score sql.NullFloat64
	if res.Score != nil {
		score = sql.NullFloat64{Float64: *res.Score, Valid: true}
	}
	var lx, ly sql.NullInt64
	if res.Location != nil {
		lx = sql.NullInt64{Int64: int64(res.Location.X), Valid: true}
		ly = sql.NullInt64{Int64: int64(res.Location.Y), Valid: true}
	}

	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO results (id, kind, verdict, attempts, template, selector, score, tolerance,
		                     points, loc_x, loc_y, candidate, diff, html, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, string(res.Kind), int(res.Verdict), res.Attempts, res.Template, res.Selector, score, res.Tolerance,
		res.Points, lx, ly, res.Candidate, res.DiffPath, r.HTML, r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", r.ID, err)
	}
	return nil
}

const columns = `id, kind, verdict, attempts, template, selector, score, tolerance,
	points, loc_x, loc_y, candidate, diff, html, created_at`

// Get returns the report with the given ID, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*match.Report, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM results WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", id, err)
	}
	return r, nil
}

// Filter narrows List.
type Filter struct {
	Kind     match.Kind
	Template string
	Verdict  *match.Verdict
	// Limit caps the result count. Zero means 50.
	Limit int
}

// List returns the most recent reports first.
func (s *Store) List(ctx context.Context, f Filter) ([]*match.Report, error) {
	query := `SELECT ` + columns + ` FROM results WHERE 1=1`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.Template != "" {
		query += ` AND template = ?`
		args = append(args, f.Template)
	}
	if f.Verdict != nil {
		query += ` AND verdict = ?`
		args = append(args, int(*f.Verdict))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []*match.Report
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: list: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats counts verdicts for one template.
type Stats struct {
	Template string `json:"template"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	LastAt   int64  `json:"last_at"`
}

// StatsByTemplate aggregates verdicts per reference image, most recently
// compared first.
func (s *Store) StatsByTemplate(ctx context.Context) ([]Stats, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT template,
		       SUM(CASE WHEN verdict = 0 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN verdict = 0 THEN 0 ELSE 1 END),
		       MAX(created_at)
		FROM results GROUP BY template ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: stats: %w", err)
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		var st Stats
		if err := rows.Scan(&st.Template, &st.Passed, &st.Failed, &st.LastAt); err != nil {
			return nil, fmt.Errorf("ledger: stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (*match.Report, error) {
	var (
		r       match.Report
		kind    string
		verdict int
		score   sql.NullFloat64
		lx, ly  sql.NullInt64
		created int64
	)
	res := &r.Result
	err := sc.Scan(&r.ID, &kind, &verdict, &res.Attempts, &res.Template, &res.Selector, &score, &res.Tolerance,
		&res.Points, &lx, &ly, &res.Candidate, &res.DiffPath, &r.HTML, &created)
	if err != nil {
		return nil, err
	}
	res.Kind = match.Kind(kind)
	res.Verdict = match.Verdict(verdict)
	if score.Valid {
		v := score.Float64
		res.Score = &v
	}
	if lx.Valid && ly.Valid {
		res.Location = &image.Point{X: int(lx.Int64), Y: int(ly.Int64)}
	}
	r.Timestamp = time.UnixMilli(created).UTC()
	return &r, nil
}
