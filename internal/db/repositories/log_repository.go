// log_repository.go implements LogRepository, providing append-only storage
// and the query engine for ingested log records. Reads go through sqlx so
// rows scan straight into models.LogRecord via db tags. Filtered queries that
// match nothing return empty slices, never errors.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/log-center/log-center/internal/db/models"
)

// LogRepository handles log record database operations
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

const logColumns = "id, level, message, process_name, timestamp, module, function, line_number"

// Append inserts one log record. The record is assigned a fresh UUID; a zero
// Timestamp defaults to the ingestion time. Records are immutable once stored.
func (r *LogRepository) Append(ctx context.Context, record *models.LogRecord) error {
	record.ID = uuid.New().String()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO logs (id, level, message, process_name, timestamp, module, function, line_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Level,
		record.Message,
		record.ProcessName,
		record.Timestamp,
		record.Module,
		record.Function,
		record.LineNumber,
	)
	return err
}

// All retrieves every stored record in insertion time order.
func (r *LogRepository) All(ctx context.Context) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query)
	return records, err
}

// ByLevel retrieves records with an exact severity level.
func (r *LogRepository) ByLevel(ctx context.Context, level models.LogLevel) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE level = $1 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, level)
	return records, err
}

// ByProcess retrieves records emitted by one process.
func (r *LogRepository) ByProcess(ctx context.Context, processName string) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE process_name = $1 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, processName)
	return records, err
}

// ByProcessAndLevel retrieves records matching both a process and a level.
func (r *LogRepository) ByProcessAndLevel(ctx context.Context, processName string, level models.LogLevel) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE process_name = $1 AND level = $2 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, processName, level)
	return records, err
}

// ByMessageKeyword retrieves records whose message contains keyword as a
// case-sensitive substring. strpos sidesteps LIKE wildcard escaping.
func (r *LogRepository) ByMessageKeyword(ctx context.Context, keyword string) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE strpos(message, $1) > 0 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, keyword)
	return records, err
}

// ByProcessAndKeyword retrieves records from one process whose message
// contains keyword as a case-sensitive substring.
func (r *LogRepository) ByProcessAndKeyword(ctx context.Context, processName, keyword string) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE process_name = $1 AND strpos(message, $2) > 0 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, processName, keyword)
	return records, err
}

// MostRecent retrieves up to limit records, newest first.
func (r *LogRepository) MostRecent(ctx context.Context, limit int) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs ORDER BY timestamp DESC LIMIT $1`
	err := r.db.SelectContext(ctx, &records, query, limit)
	return records, err
}

// ByDateFrom retrieves records stamped at or after start.
func (r *LogRepository) ByDateFrom(ctx context.Context, start time.Time) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE timestamp >= $1 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, start)
	return records, err
}

// ByDateRange retrieves records stamped within [start, end], both inclusive.
func (r *LogRepository) ByDateRange(ctx context.Context, start, end time.Time) ([]*models.LogRecord, error) {
	records := make([]*models.LogRecord, 0)
	query := `SELECT ` + logColumns + ` FROM logs WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp ASC`
	err := r.db.SelectContext(ctx, &records, query, start, end)
	return records, err
}
