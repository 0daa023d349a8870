package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/akinetopsia/internal/disruption"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	seed              INTEGER NOT NULL,
	sampling_interval INTEGER NOT NULL,
	initial_state     TEXT NOT NULL,
	transition_json   TEXT NOT NULL,
	policy            TEXT NOT NULL,
	width             INTEGER NOT NULL,
	height            INTEGER NOT NULL,
	started_at        TEXT NOT NULL,
	finished_at       TEXT,
	frames            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS frame_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	frame_index     INTEGER NOT NULL,
	state           TEXT NOT NULL,
	directive       TEXT NOT NULL,
	sampling        INTEGER NOT NULL,
	mean_magnitude  REAL NOT NULL,
	created_at      TEXT NOT NULL,
	UNIQUE (run_id, frame_index),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store keeps the run log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region create-run
// CreateRun inserts rec with a fresh run id and start time and returns it.
func (s *Store) CreateRun(rec RunRecord) (RunRecord, error) {
	rec.RunID = uuid.New().String()
	rec.StartedAt = time.Now().UTC()
	rec.FinishedAt = time.Time{}
	rec.Frames = 0

	modelJSON, err := json.Marshal(rec.Model.Rows())
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal transition model: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, source, seed, sampling_interval, initial_state, transition_json,
		                   policy, width, height, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Source, int64(rec.Seed), rec.SamplingInterval, rec.InitialState.String(),
		string(modelJSON), rec.Policy, rec.Width, rec.Height, rec.StartedAt.Format(timeFormat),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion create-run

// #region log-frame
// LogFrame appends one frame decision to a run.
func (s *Store) LogFrame(rec FrameRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO frame_log (run_id, frame_index, state, directive, sampling, mean_magnitude, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Index, rec.State.String(), rec.Directive.String(),
		boolToInt(rec.Sampling), rec.MeanMagnitude, rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", rec.Index, err)
	}
	return nil
}

// #endregion log-frame

// #region finish-run
// FinishRun stamps the run as finished with its final frame count.
func (s *Store) FinishRun(runID string, frames int) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, frames = ? WHERE run_id = ?`,
		time.Now().UTC().Format(timeFormat), frames, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// #endregion finish-run

// #region get-run
const runColumns = `run_id, source, seed, sampling_interval, initial_state, transition_json,
	policy, width, height, started_at, finished_at, frames`

// GetRun loads a run by id.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion get-run

// #region frames
// Frames returns the logged decisions of a run in frame order.
func (s *Store) Frames(runID string) ([]FrameRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, frame_index, state, directive, sampling, mean_magnitude, created_at
		 FROM frame_log WHERE run_id = ? ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var records []FrameRecord
	for rows.Next() {
		var (
			rec               FrameRecord
			stateStr, kindStr string
			sampling          int
			createdStr        string
		)
		if err := rows.Scan(&rec.RunID, &rec.Index, &stateStr, &kindStr, &sampling, &rec.MeanMagnitude, &createdStr); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		if rec.State, err = disruption.ParseState(stateStr); err != nil {
			return nil, fmt.Errorf("frame %d: %w", rec.Index, err)
		}
		if rec.Directive, err = disruption.ParseDirectiveKind(kindStr); err != nil {
			return nil, fmt.Errorf("frame %d: %w", rec.Index, err)
		}
		rec.Sampling = sampling != 0
		rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion frames

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec         RunRecord
		seed        int64
		stateStr    string
		modelJSON   string
		startedStr  string
		finishedStr sql.NullString
	)
	err := sc.Scan(&rec.RunID, &rec.Source, &seed, &rec.SamplingInterval, &stateStr, &modelJSON,
		&rec.Policy, &rec.Width, &rec.Height, &startedStr, &finishedStr, &rec.Frames)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Seed = uint64(seed)
	if rec.InitialState, err = disruption.ParseState(stateStr); err != nil {
		return RunRecord{}, err
	}

	var rows [][]float64
	if err := json.Unmarshal([]byte(modelJSON), &rows); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal transition model: %w", err)
	}
	if rec.Model, err = disruption.NewTransitionModel(rows); err != nil {
		return RunRecord{}, err
	}

	rec.StartedAt, _ = time.Parse(timeFormat, startedStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(timeFormat, finishedStr.String)
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
