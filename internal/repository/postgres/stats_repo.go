package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// Запрос клиента — это первое событие по нему: executed, pending, rejected
// или failed без pending_id. approved/denied/failed после апрува — продолжение того же запроса.
const activityQuery = `
SELECT
	COUNT(*) FILTER (WHERE event_type IN ('executed', 'pending', 'rejected')
		OR (event_type = 'failed' AND pending_id = '')),
	COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms)
		FILTER (WHERE event_type IN ('executed', 'approved')), 0)
FROM command_audit
WHERE created_at > $1`

const byTypeQuery = `
SELECT event_type, COUNT(*)
FROM command_audit
WHERE created_at > $1
GROUP BY event_type`

const topCommandsQuery = `
SELECT command, COUNT(*) AS n
FROM command_audit
WHERE created_at > $1 AND event_type IN ('executed', 'pending', 'rejected')
GROUP BY command
ORDER BY n DESC, command
LIMIT $2`

// ActivityStats собирает агрегаты журнала за последние window.
func (r *AuditRepo) ActivityStats(ctx context.Context, window time.Duration, top int) (*domain.ActivityStats, error) {
	since := time.Now().Add(-window)
	s := &domain.ActivityStats{
		WindowSeconds: int64(window.Seconds()),
		ByType:        make(map[string]int64),
		TopCommands:   make([]domain.CommandCount, 0, top),
	}

	if err := r.db.QueryRowContext(ctx, activityQuery, since).Scan(&s.TotalRequests, &s.P95LatencyMs); err != nil {
		return nil, fmt.Errorf("activity stats: %w", err)
	}
	if window > 0 {
		s.RPS = float64(s.TotalRequests) / window.Seconds()
	}

	rows, err := r.db.QueryContext(ctx, byTypeQuery, since)
	if err != nil {
		return nil, fmt.Errorf("stats by type: %w", err)
	}
	for rows.Next() {
		var (
			typ string
			n   int64
		)
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByType[typ] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, topCommandsQuery, since, top)
	if err != nil {
		return nil, fmt.Errorf("top commands: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.CommandCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, err
		}
		s.TopCommands = append(s.TopCommands, c)
	}
	return s, rows.Err()
}
