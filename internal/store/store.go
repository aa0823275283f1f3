// Package store persists tariffs, uploaded demand series and simulation
// runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/finance"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
)

var ErrNotFound = errors.New("not found")

type TariffRecord struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Tariff    config.TariffConfig `json:"tariff"`
	CreatedAt time.Time           `json:"created_at"`
}

type UploadRecord struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Info      data.SeriesInfo `json:"info"`
	Warnings  []data.Warning  `json:"warnings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunRecord is a persisted simulation. Request holds the scenario that
// produced it, as the caller encoded it.
type RunRecord struct {
	ID        string               `json:"id"`
	UploadID  string               `json:"upload_id,omitempty"`
	Strategy  string               `json:"strategy"`
	Request   json.RawMessage      `json:"request,omitempty"`
	Result    finance.PeriodResult `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store wraps a SQLite database. Safe for concurrent use.
type Store struct {
	db       *sql.DB
	dbPath   string
	mutex    sync.RWMutex
	prepared map[string]*sql.Stmt
	logger   *zap.Logger
	now      func() time.Time
}

// Open creates the database file (and its directory) if needed.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:       db,
		dbPath:   dbPath,
		prepared: make(map[string]*sql.Stmt),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tariff_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config TEXT NOT NULL, -- JSON TariffConfig
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL,
		total_days INTEGER NOT NULL,
		total_points INTEGER NOT NULL,
		max_kw REAL NOT NULL,
		min_kw REAL NOT NULL,
		mean_kw REAL NOT NULL,
		warnings TEXT, -- JSON []Warning
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS load_samples (
		upload_id TEXT NOT NULL REFERENCES uploads(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		ts_unix_ms INTEGER NOT NULL,
		utc_offset_sec INTEGER NOT NULL DEFAULT 0,
		power_kw REAL NOT NULL,
		PRIMARY KEY (upload_id, seq)
	);

	CREATE TABLE IF NOT EXISTS simulation_runs (
		id TEXT PRIMARY KEY,
		upload_id TEXT,
		strategy TEXT NOT NULL,
		request TEXT,
		result TEXT NOT NULL, -- JSON PeriodResult
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_upload ON simulation_runs(upload_id);
	CREATE INDEX IF NOT EXISTS idx_tariffs_created ON tariff_configs(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateSampleOffsets()
}

// migrateSampleOffsets adds utc_offset_sec to databases created before
// samples kept their zone offset. Old rows read back as UTC.
func (s *Store) migrateSampleOffsets() error {
	ok, err := s.hasColumn("load_samples", "utc_offset_sec")
	if err != nil || ok {
		return err
	}
	s.logger.Info("adding utc_offset_sec to load_samples", zap.String("op", "store.migrate"))
	_, err = s.db.Exec(`ALTER TABLE load_samples ADD COLUMN utc_offset_sec INTEGER NOT NULL DEFAULT 0`)
	return err
}

func (s *Store) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) prepareStatements() error {
	statements := map[string]string{
		"insert_tariff": `INSERT INTO tariff_configs (id, name, config, created_at) VALUES (?, ?, ?, ?)`,
		"select_tariff": `SELECT id, name, config, created_at FROM tariff_configs WHERE id = ?`,
		"list_tariffs":  `SELECT id, name, config, created_at FROM tariff_configs ORDER BY created_at DESC, id`,
		"insert_upload": `
			INSERT INTO uploads (
				id, filename, start_at, end_at, total_days, total_points,
				max_kw, min_kw, mean_kw, warnings, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
		"select_upload": `
			SELECT id, filename, start_at, end_at, total_days, total_points,
				   max_kw, min_kw, mean_kw, warnings, created_at
			FROM uploads WHERE id = ?
		`,
		"insert_sample":  `INSERT INTO load_samples (upload_id, seq, ts_unix_ms, utc_offset_sec, power_kw) VALUES (?, ?, ?, ?, ?)`,
		"select_samples": `SELECT ts_unix_ms, utc_offset_sec, power_kw FROM load_samples WHERE upload_id = ? ORDER BY seq ASC`,
		"insert_run": `
			INSERT INTO simulation_runs (id, upload_id, strategy, request, result, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
		"select_run": `SELECT id, upload_id, strategy, request, result, created_at FROM simulation_runs WHERE id = ?`,
	}

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.prepared[name] = stmt
	}
	return nil
}

// Close releases prepared statements and the database handle.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, stmt := range s.prepared {
		stmt.Close()
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SaveTariff(ctx context.Context, t config.TariffConfig) (TariffRecord, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return TariffRecord{}, fmt.Errorf("failed to marshal tariff: %w", err)
	}
	rec := TariffRecord{ID: uuid.NewString(), Name: t.Name, Tariff: t, CreatedAt: s.now()}
	if rec.Name == "" {
		rec.Name = rec.ID
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, err := s.prepared["insert_tariff"].ExecContext(ctx, rec.ID, rec.Name, string(raw), rec.CreatedAt); err != nil {
		return TariffRecord{}, fmt.Errorf("failed to store tariff: %w", err)
	}
	s.logger.Debug("stored tariff", zap.String("op", "store.SaveTariff"), zap.String("id", rec.ID))
	return rec, nil
}

func (s *Store) GetTariff(ctx context.Context, id string) (TariffRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, err := scanTariff(s.prepared["select_tariff"].QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TariffRecord{}, fmt.Errorf("tariff %s: %w", id, ErrNotFound)
	}
	return rec, err
}

func (s *Store) ListTariffs(ctx context.Context) ([]TariffRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows, err := s.prepared["list_tariffs"].QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query tariffs: %w", err)
	}
	defer rows.Close()

	out := []TariffRecord{}
	for rows.Next() {
		rec, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTariff(row scanner) (TariffRecord, error) {
	var rec TariffRecord
	var raw string
	if err := row.Scan(&rec.ID, &rec.Name, &raw, &rec.CreatedAt); err != nil {
		return TariffRecord{}, err
	}
	if err := json.Unmarshal([]byte(raw), &rec.Tariff); err != nil {
		return TariffRecord{}, fmt.Errorf("failed to unmarshal tariff %s: %w", rec.ID, err)
	}
	return rec, nil
}

// SaveUpload stores the parsed series and its samples in one transaction.
func (s *Store) SaveUpload(ctx context.Context, filename string, p data.Parsed) (UploadRecord, error) {
	if len(p.Series) == 0 {
		return UploadRecord{}, data.ErrNoValidRows
	}
	warnings, err := json.Marshal(p.Warnings)
	if err != nil {
		return UploadRecord{}, fmt.Errorf("failed to marshal warnings: %w", err)
	}
	rec := UploadRecord{
		ID:        uuid.NewString(),
		Filename:  filename,
		Info:      p.Info,
		Warnings:  p.Warnings,
		CreatedAt: s.now(),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UploadRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.StmtContext(ctx, s.prepared["insert_upload"]).ExecContext(ctx,
		rec.ID, rec.Filename, rec.Info.Start, rec.Info.End, rec.Info.TotalDays, rec.Info.Points,
		rec.Info.MaxKW, rec.Info.MinKW, rec.Info.MeanKW, string(warnings), rec.CreatedAt,
	)
	if err != nil {
		return UploadRecord{}, fmt.Errorf("failed to store upload: %w", err)
	}

	insert := tx.StmtContext(ctx, s.prepared["insert_sample"])
	for i, sample := range p.Series {
		_, offset := sample.Timestamp.Zone()
		if _, err := insert.ExecContext(ctx, rec.ID, i, sample.Timestamp.UnixMilli(), offset, sample.PowerKW); err != nil {
			return UploadRecord{}, fmt.Errorf("failed to store sample %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return UploadRecord{}, fmt.Errorf("failed to commit upload: %w", err)
	}

	s.logger.Info("stored upload",
		zap.String("op", "store.SaveUpload"),
		zap.String("id", rec.ID),
		zap.String("filename", filename),
		zap.Int("points", len(p.Series)),
	)
	return rec, nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (UploadRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var rec UploadRecord
	var warnings sql.NullString
	err := s.prepared["select_upload"].QueryRowContext(ctx, id).Scan(
		&rec.ID, &rec.Filename, &rec.Info.Start, &rec.Info.End, &rec.Info.TotalDays, &rec.Info.Points,
		&rec.Info.MaxKW, &rec.Info.MinKW, &rec.Info.MeanKW, &warnings, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UploadRecord{}, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return UploadRecord{}, fmt.Errorf("failed to query upload: %w", err)
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &rec.Warnings); err != nil {
			return UploadRecord{}, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}
	return rec, nil
}

// LoadSeries returns the samples of an upload in their original order.
func (s *Store) LoadSeries(ctx context.Context, uploadID string) (model.TimeSeries, error) {
	if _, err := s.GetUpload(ctx, uploadID); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows, err := s.prepared["select_samples"].QueryContext(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out model.TimeSeries
	for rows.Next() {
		var ms int64
		var offset int
		var kw float64
		if err := rows.Scan(&ms, &offset, &kw); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, model.Sample{Timestamp: time.UnixMilli(ms).In(zoneFor(offset)), PowerKW: kw})
	}
	return out, rows.Err()
}

// zoneFor rebuilds the fixed zone a sample was parsed with, so band
// classification sees the same wall-clock hour as the inline path.
func zoneFor(offsetSec int) *time.Location {
	if offsetSec == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetSec)
}

func (s *Store) SaveRun(ctx context.Context, run RunRecord) (RunRecord, error) {
	result, err := json.Marshal(run.Result)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	run.ID = uuid.NewString()
	run.CreatedAt = s.now()

	var uploadID sql.NullString
	if run.UploadID != "" {
		uploadID = sql.NullString{String: run.UploadID, Valid: true}
	}
	var request sql.NullString
	if len(run.Request) > 0 {
		request = sql.NullString{String: string(run.Request), Valid: true}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err = s.prepared["insert_run"].ExecContext(ctx, run.ID, uploadID, run.Strategy, request, string(result), run.CreatedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to store run: %w", err)
	}
	s.logger.Debug("stored simulation run", zap.String("op", "store.SaveRun"), zap.String("id", run.ID))
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var run RunRecord
	var uploadID, request sql.NullString
	var result string
	err := s.prepared["select_run"].QueryRowContext(ctx, id).Scan(
		&run.ID, &uploadID, &run.Strategy, &request, &result, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query run: %w", err)
	}
	run.UploadID = uploadID.String
	if request.Valid {
		run.Request = json.RawMessage(request.String)
	}
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return RunRecord{}, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	return run, nil
}
