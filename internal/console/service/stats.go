package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

const (
	statsWindow = time.Hour
	topCommands = 5
)

// LiveSource — живое состояние шлюза.
type LiveSource interface {
	PendingCommands() []domain.PendingCommand
	Whitelist() []domain.WhitelistEntry
}

// ActivityProvider — агрегаты из журнала аудита.
type ActivityProvider interface {
	ActivityStats(ctx context.Context, window time.Duration, top int) (*domain.ActivityStats, error)
}

type StatsService struct {
	live LiveSource
	repo ActivityProvider // nil — без БД отдаем только live
}

func NewStatsService(live LiveSource, repo ActivityProvider) *StatsService {
	return &StatsService{live: live, repo: repo}
}

func (s *StatsService) GetGlobalStats(ctx context.Context) (*domain.GatewayStats, error) {
	entries := s.live.Whitelist()
	stats := &domain.GatewayStats{
		Live: domain.LiveStats{
			PendingCommands:  len(s.live.PendingCommands()),
			WhitelistEntries: len(entries),
		},
	}
	for _, e := range entries {
		if e.Level == domain.LevelForbidden {
			stats.Live.ForbiddenEntries++
		}
	}

	if s.repo == nil {
		return stats, nil
	}
	// TODO: кэшировать в Redis на минуту, если дашборд начнут опрашивать часто
	activity, err := s.repo.ActivityStats(ctx, statsWindow, topCommands)
	if err != nil {
		return nil, fmt.Errorf("stats_service: %w", err)
	}
	stats.Activity = activity
	return stats, nil
}
