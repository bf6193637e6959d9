package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"epieval/internal/evaluate"
	"epieval/internal/sequence"
	"epieval/internal/store/db"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("epieval/store")

var ErrRunNotFound = errors.New("run not found")

// Config selects the database results are written to. A remote url takes precedence over
// a local file.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Config) Enabled() bool {
	return config.File != "" || config.Url != ""
}

// OpenDB opens a local sqlite file, or a libsql server for libsql:// and http(s):// urls.
func (config Config) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("neither a database file nor url was specified")
		}
		path := strings.TrimPrefix(config.File, "file:")
		conn, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		// in-memory databases exist per connection, files only take one writer anyway
		conn.SetMaxOpenConns(1)
		if path != ":memory:" {
			_, err = conn.Exec("PRAGMA journal_mode=WAL")
			if err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}

	switch {
	case strings.HasPrefix(config.Url, "libsql://"),
		strings.HasPrefix(config.Url, "http://"),
		strings.HasPrefix(config.Url, "https://"):
	default:
		return nil, fmt.Errorf("unsupported database url %q", config.Url)
	}

	values := url.Values{}
	if config.AuthToken != "" {
		values.Add("authToken", config.AuthToken)
	}
	dsn := config.Url
	if len(values) > 0 {
		dsn += "?" + values.Encode()
	}
	return sql.Open("libsql", dsn)
}

// Store persists finished evaluation runs.
type Store struct {
	db *sql.DB
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, config Config) (Store, error) {
	conn, err := config.OpenDB()
	if err != nil {
		return Store{}, fmt.Errorf("open results database: %w", err)
	}
	s, err := New(ctx, conn)
	if err != nil {
		conn.Close()
		return Store{}, err
	}
	return s, nil
}

// New applies the schema to an open database.
func New(ctx context.Context, conn *sql.DB) (Store, error) {
	_, err := conn.ExecContext(ctx, db.Schema)
	if err != nil {
		return Store{}, fmt.Errorf("apply schema: %w", err)
	}
	return Store{db: conn}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Run is one finished batch evaluation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Set        sequence.Set
	Result     evaluate.Result
}

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	SequenceCount int
}

// Save writes run in a single transaction and returns its id, one is generated when
// run.ID is empty.
func (s Store) Save(ctx context.Context, run Run) (id string, err error) {
	ctx, span := tracer.Start(ctx, "Save")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to save run")
		}
		span.End()
	}()

	id = run.ID
	if id == "" {
		id, err = random.String(8)
		if err != nil {
			return "", fmt.Errorf("generate run id: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		"insert into Run(id, startedAt, finishedAt, sequenceCount) values (?, ?, ?, ?)",
		id, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Set.Len(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, r := range run.Set.Records() {
		_, err = tx.ExecContext(
			ctx,
			"insert into Sequence(runId, position, sequenceId, sequence) values (?, ?, ?, ?)",
			id, i, r.ID, r.Seq,
		)
		if err != nil {
			return "", fmt.Errorf("insert sequence: %w", err)
		}
	}

	for key, series := range run.Result.Scores {
		for i, v := range series {
			_, err = tx.ExecContext(
				ctx,
				"insert into Score(runId, label, tool, position, value) values (?, ?, ?, ?, ?)",
				id, key.Label, key.Tool, i, v,
			)
			if err != nil {
				return "", fmt.Errorf("insert score: %w", err)
			}
		}
	}

	for key, failure := range run.Result.Failures {
		_, err = tx.ExecContext(
			ctx,
			"insert into Failure(runId, label, tool, error) values (?, ?, ?, ?)",
			id, key.Label, key.Tool, failure.Error(),
		)
		if err != nil {
			return "", fmt.Errorf("insert failure: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return "", err
	}
	return id, nil
}

// Scores reads back the score series of a run.
func (s Store) Scores(ctx context.Context, runID string) (map[evaluate.Key]evaluate.Series, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "select sequenceCount from Run where id = ?", runID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		"select label, tool, position, value from Score where runId = ? order by label, tool, position",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[evaluate.Key]evaluate.Series)
	for rows.Next() {
		var (
			key      evaluate.Key
			position int
			value    float64
		)
		err = rows.Scan(&key.Label, &key.Tool, &position, &value)
		if err != nil {
			return nil, err
		}
		series, ok := out[key]
		if !ok {
			series = make(evaluate.Series, count)
		}
		if position < 0 || position >= count {
			return nil, fmt.Errorf("score position %d out of range for %s", position, key)
		}
		series[position] = value
		out[key] = series
	}
	return out, rows.Err()
}

// Failures reads back the failure messages of a run.
func (s Store) Failures(ctx context.Context, runID string) (map[evaluate.Key]string, error) {
	rows, err := s.db.QueryContext(ctx, "select label, tool, error from Failure where runId = ?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[evaluate.Key]string)
	for rows.Next() {
		var (
			key evaluate.Key
			msg string
		)
		err = rows.Scan(&key.Label, &key.Tool, &msg)
		if err != nil {
			return nil, err
		}
		out[key] = msg
	}
	return out, rows.Err()
}

// Load reads back a whole run, failures are restored as plain errors carrying the stored
// message.
func (s Store) Load(ctx context.Context, runID string) (Run, error) {
	var started, finished int64
	err := s.db.QueryRowContext(
		ctx,
		"select startedAt, finishedAt from Run where id = ?",
		runID,
	).Scan(&started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		"select sequenceId, sequence from Sequence where runId = ? order by position",
		runID,
	)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	var records []sequence.Record
	for rows.Next() {
		var r sequence.Record
		err = rows.Scan(&r.ID, &r.Seq)
		if err != nil {
			return Run{}, err
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return Run{}, err
	}
	set, err := sequence.NewSet(records...)
	if err != nil {
		return Run{}, fmt.Errorf("stored sequences: %w", err)
	}

	scores, err := s.Scores(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	messages, err := s.Failures(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	failures := make(map[evaluate.Key]error, len(messages))
	for k, msg := range messages {
		failures[k] = errors.New(msg)
	}

	return Run{
		ID:         runID,
		StartedAt:  time.Unix(started, 0),
		FinishedAt: time.Unix(finished, 0),
		Set:        set,
		Result: evaluate.Result{
			Scores:   scores,
			Failures: failures,
		},
	}, nil
}

// Runs lists stored runs, most recent first.
func (s Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select id, startedAt, finishedAt, sequenceCount from Run order by startedAt desc, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info              RunInfo
			started, finished int64
		)
		err = rows.Scan(&info.ID, &started, &finished, &info.SequenceCount)
		if err != nil {
			return nil, err
		}
		info.StartedAt = time.Unix(started, 0)
		info.FinishedAt = time.Unix(finished, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}
