// Package runlog persists a record of every synthesis run to a local sqlite
// database: the grid and source parameters, the particle count, the full
// parameter JSON and the final orientation matrix. Saved records make runs
// reproducible and let tooling list and compare past observations.
package runlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/redshift-labs/hicube/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("runlog: run not found")

var logf = monitoring.Scoped("runlog")

// Record describes one synthesis run.
type Record struct {
	RunID            string
	CreatedUnixNanos int64

	NPxX         int
	NPxY         int
	NChannels    int
	PxSizeArcsec float64
	ChannelKms   float64
	FreqMode     bool

	RADeg        float64
	DecDeg       float64
	DistanceMpc  float64
	VPeculiarKms float64
	NParticles   int

	ParamsJSON   string
	RotationText string
}

// NewRecord stamps a record with a fresh run ID and the current time. The
// caller fills in the run parameters.
func NewRecord() Record {
	return Record{
		RunID:            uuid.New().String(),
		CreatedUnixNanos: time.Now().UnixNano(),
	}
}

// DB is a handle to the run database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the run database at path and applies any
// pending schema migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	rdb := &DB{db}
	if err := rdb.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return rdb, nil
}

// migrateUp applies all pending migrations from the embedded sources.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closed: closing would also close the shared DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// InsertRun persists a run record.
func (db *DB) InsertRun(r Record) error {
	stmt := `INSERT INTO synthesis_run (
			run_id, created_unix_nanos,
			npx_x, npx_y, n_channels, px_size_arcsec, channel_width_kms, freq_mode,
			ra_deg, dec_deg, distance_mpc, vpec_kms, n_particles,
			params_json, rotation_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(stmt,
		r.RunID, r.CreatedUnixNanos,
		r.NPxX, r.NPxY, r.NChannels, r.PxSizeArcsec, r.ChannelKms, boolToInt(r.FreqMode),
		r.RADeg, r.DecDeg, r.DistanceMpc, r.VPeculiarKms, r.NParticles,
		r.ParamsJSON, r.RotationText)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	logf("recorded run %s (%dx%dx%d)", r.RunID, r.NPxX, r.NPxY, r.NChannels)
	return nil
}

// GetRun fetches a run record by ID.
func (db *DB) GetRun(runID string) (Record, error) {
	row := db.QueryRow(`SELECT `+recordColumns+` FROM synthesis_run WHERE run_id = ?`, runID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns up to limit records, most recent first. A non-positive
// limit returns everything.
func (db *DB) ListRuns(limit int) ([]Record, error) {
	q := `SELECT ` + recordColumns + ` FROM synthesis_run ORDER BY created_unix_nanos DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const recordColumns = `run_id, created_unix_nanos,
	npx_x, npx_y, n_channels, px_size_arcsec, channel_width_kms, freq_mode,
	ra_deg, dec_deg, distance_mpc, vpec_kms, n_particles,
	params_json, rotation_text`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var freq int
	var params, rot sql.NullString
	err := row.Scan(
		&r.RunID, &r.CreatedUnixNanos,
		&r.NPxX, &r.NPxY, &r.NChannels, &r.PxSizeArcsec, &r.ChannelKms, &freq,
		&r.RADeg, &r.DecDeg, &r.DistanceMpc, &r.VPeculiarKms, &r.NParticles,
		&params, &rot)
	if err != nil {
		return Record{}, err
	}
	r.FreqMode = freq != 0
	r.ParamsJSON = params.String
	r.RotationText = rot.String
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
