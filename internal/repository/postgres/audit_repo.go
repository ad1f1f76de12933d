package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/spaceai-cmdgate/internal/audit"
)

// auditColumns — порядок колонок в INSERT; buildInsert кладет значения в том же порядке.
var auditColumns = []string{
	"id", "trace_id", "event_type", "command", "args", "pending_id",
	"requested_by", "actor", "reason", "error", "stdout", "stderr",
	"duration_ms", "created_at",
}

const schema = `
CREATE TABLE IF NOT EXISTS command_audit (
	id           UUID PRIMARY KEY,
	trace_id     TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	command      TEXT NOT NULL,
	args         JSONB NOT NULL DEFAULT '[]',
	pending_id   TEXT NOT NULL DEFAULT '',
	requested_by TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	stdout       TEXT NOT NULL DEFAULT '',
	stderr       TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS command_audit_created_at_idx ON command_audit (created_at);
CREATE INDEX IF NOT EXISTS command_audit_pending_id_idx ON command_audit (pending_id) WHERE pending_id <> '';
`

type AuditRepo struct {
	db *sql.DB
}

type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewAuditRepo открывает пул и проверяет соединение.
func NewAuditRepo(ctx context.Context, connString string, pool PoolConfig) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(int(pool.MaxConns))
	}
	if pool.MinConns > 0 {
		db.SetMaxIdleConns(int(pool.MinConns))
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &AuditRepo{db: db}, nil
}

func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	query, vals, err := buildInsert(events)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert %d audit events: %w", len(events), err)
	}
	return nil
}

// buildInsert строит один многострочный INSERT для пачки.
// ON CONFLICT: повторный flush той же пачки не должен ронять запись.
func buildInsert(events []audit.AuditEvent) (string, []interface{}, error) {
	numFields := len(auditColumns)
	rows := make([]string, 0, len(events))
	vals := make([]interface{}, 0, len(events)*numFields)

	for i, e := range events {
		ph := make([]string, numFields)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*numFields+j+1)
		}
		rows = append(rows, "("+strings.Join(ph, ", ")+")")

		args, err := json.Marshal(e.Args)
		if err != nil {
			return "", nil, fmt.Errorf("marshal args of %s: %w", e.ID, err)
		}

		vals = append(vals,
			e.ID, e.TraceID, e.Type, e.Command, string(args), e.PendingID,
			e.RequestedBy, e.Actor, e.Reason, e.Error, e.Stdout, e.Stderr,
			e.DurationMs, e.Timestamp,
		)
	}

	query := fmt.Sprintf("INSERT INTO command_audit (%s) VALUES %s ON CONFLICT (id) DO NOTHING",
		strings.Join(auditColumns, ", "), strings.Join(rows, ", "))
	return query, vals, nil
}

// FetchLogs читает журнал, новые записи первыми. Пустые поля фильтра не применяются.
func (r *AuditRepo) FetchLogs(ctx context.Context, f audit.Filter) ([]audit.AuditEvent, error) {
	query, vals := buildSelect(f)

	rows, err := r.db.QueryContext(ctx, query, vals...)
	if err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	defer rows.Close()

	out := make([]audit.AuditEvent, 0)
	for rows.Next() {
		var (
			e    audit.AuditEvent
			args []byte
		)
		if err := rows.Scan(
			&e.ID, &e.TraceID, &e.Type, &e.Command, &args, &e.PendingID,
			&e.RequestedBy, &e.Actor, &e.Reason, &e.Error, &e.Stdout, &e.Stderr,
			&e.DurationMs, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if err := json.Unmarshal(args, &e.Args); err != nil {
			return nil, fmt.Errorf("decode args of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildSelect(f audit.Filter) (string, []interface{}) {
	var (
		where []string
		vals  []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		vals = append(vals, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(vals)))
	}
	add("command", f.Command)
	add("event_type", f.Type)
	add("pending_id", f.PendingID)
	add("trace_id", f.TraceID)

	query := "SELECT " + strings.Join(auditColumns, ", ") + " FROM command_audit"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	vals = append(vals, f.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(vals))
	return query, vals
}
