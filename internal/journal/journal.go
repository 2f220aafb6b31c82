// Package journal keeps a history of print jobs in SQLite.
package journal

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed sql/schema.sql
var schema string

type Outcome string

const (
	Pending Outcome = "pending"
	Printed Outcome = "printed"
	Failed  Outcome = "failed"
)

type Job struct {
	Uuid        uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Source      string    `json:"source"`
	Lines       int       `json:"lines"`
	MediaWidth  int       `json:"mediaWidth"`
	MediaLength int       `json:"mediaLength"`
	MediaType   string    `json:"mediaType"`
	Outcome     Outcome   `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}

type Repository struct {
	Db *sql.DB
}

// Open connects to the database at dsn and creates the schema if needed.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	// one connection, so ":memory:" databases are shared and writes never contend
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
	}
	return &Repository{Db: db}, nil
}

func (r *Repository) Close() error {
	return r.Db.Close()
}

// Create stores a new pending job for source and returns it.
func (r *Repository) Create(source string) (*Job, error) {
	j := &Job{
		Uuid:      uuid.New(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Outcome:   Pending,
	}
	_, err := r.Db.Exec(`
		INSERT INTO print_job(uuid, created_at, source, outcome)
		VALUES (?, ?, ?, ?)`,
		j.Uuid.String(), j.CreatedAt.UnixMicro(), j.Source, string(j.Outcome))
	if err != nil {
		return nil, fmt.Errorf("Failed to insert into print_job:\n%w", err)
	}
	return j, nil
}

// Finish writes the final state of j back to the journal.
func (r *Repository) Finish(j *Job) error {
	res, err := r.Db.Exec(`
		UPDATE print_job
		SET line_count = ?, media_width = ?, media_length = ?, media_type = ?, outcome = ?, error = ?
		WHERE uuid = ?`,
		j.Lines, j.MediaWidth, j.MediaLength, j.MediaType, string(j.Outcome), j.Error, j.Uuid.String())
	if err != nil {
		return fmt.Errorf("Couldn't update print job:\n%w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Couldn't update print job:\n%w", err)
	}
	if n == 0 {
		return fmt.Errorf("No print job with UUID %s", j.Uuid.String())
	}
	return nil
}

const jobColumns = `uuid, created_at, source, line_count, media_width, media_length, media_type, outcome, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (Job, error) {
	var j Job
	var uuidString, outcome string
	var created int64
	err := s.Scan(&uuidString, &created, &j.Source, &j.Lines,
		&j.MediaWidth, &j.MediaLength, &j.MediaType, &outcome, &j.Error)
	if err != nil {
		return j, err
	}
	j.Uuid, err = uuid.Parse(uuidString)
	if err != nil {
		return j, fmt.Errorf("Bad job id %q:\n%w", uuidString, err)
	}
	j.CreatedAt = time.UnixMicro(created).UTC()
	j.Outcome = Outcome(outcome)
	return j, nil
}

// Get returns the job with the given id, or nil if there isn't one.
func (r *Repository) Get(u uuid.UUID) (*Job, error) {
	row := r.Db.QueryRow(`SELECT `+jobColumns+` FROM print_job WHERE uuid = ?`, u.String())
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read print job:\n%w", err)
	}
	return &j, nil
}

// List returns up to limit jobs, newest first. A limit of zero or less
// returns every job.
func (r *Repository) List(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.Db.Query(`
		SELECT `+jobColumns+`
		FROM print_job
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("Row scanning failed:\n%w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}
	return jobs, nil
}

// Prune deletes all but the newest keep jobs and reports how many went.
func (r *Repository) Prune(keep int) (int64, error) {
	var removed int64
	err := r.Transact(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM print_job
			WHERE id NOT IN (
				SELECT id FROM print_job ORDER BY created_at DESC, id DESC LIMIT ?
			)`, keep)
		if err != nil {
			return fmt.Errorf("Couldn't prune print jobs:\n%w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Transact runs f against the journal in a single transaction. It commits
// when f returns nil and rolls back otherwise, reporting a failed rollback
// together with the error from f.
func (r *Repository) Transact(f func(*sql.Tx) error) error {
	tx, err := r.Db.Begin()
	if err != nil {
		return fmt.Errorf("Couldn't start journal transaction:\n%w", err)
	}

	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("Couldn't roll back journal transaction:\n%w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Couldn't commit journal transaction:\n%w", err)
	}
	return nil
}
