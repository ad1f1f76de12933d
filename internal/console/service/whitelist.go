package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/engine"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra"
)

// WhitelistStore — то, что сервису нужно от шлюза.
type WhitelistStore interface {
	Whitelist() []domain.WhitelistEntry
	AddToWhitelist(entry domain.WhitelistEntry)
	UpdateSecurityLevel(command string, level domain.SecurityLevel)
	RemoveFromWhitelist(command string)
}

// SignalPublisher — часть redis-клиента, нужная для рассылки сигналов.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

var _ engine.WhitelistEditor = (*WhitelistService)(nil)

// WhitelistService меняет локальный реестр и, если есть Redis, рассылает
// правку уровня/удаление соседним инстансам.
type WhitelistService struct {
	store  WhitelistStore
	pub    SignalPublisher // nil — работаем в одиночку
	logger *zap.Logger
}

func NewWhitelistService(store WhitelistStore, rdb redis.UniversalClient, logger *zap.Logger) *WhitelistService {
	s := NewWhitelistServiceWithPublisher(store, nil, logger)
	if rdb != nil {
		s.pub = rdb
	}
	return s
}

func NewWhitelistServiceWithPublisher(store WhitelistStore, pub SignalPublisher, logger *zap.Logger) *WhitelistService {
	return &WhitelistService{
		store:  store,
		pub:    pub,
		logger: logger.With(zap.String("mod", "whitelist_service")),
	}
}

func (s *WhitelistService) List() []domain.WhitelistEntry {
	return s.store.Whitelist()
}

// Add действует только локально: сигнал не несет матчеры.
func (s *WhitelistService) Add(_ context.Context, entry domain.WhitelistEntry) {
	s.store.AddToWhitelist(entry)
}

func (s *WhitelistService) UpdateLevel(ctx context.Context, command string, level domain.SecurityLevel) {
	s.store.UpdateSecurityLevel(command, level)
	s.notifyUpdate(ctx, command, string(level))
}

func (s *WhitelistService) Remove(ctx context.Context, command string) {
	s.store.RemoveFromWhitelist(command)
	s.notifyUpdate(ctx, command, engine.SignalRemove)
}

// notifyUpdate отправляет широковещательный сигнал в Redis.
// Ошибка рассылки не откатывает локальную правку.
func (s *WhitelistService) notifyUpdate(ctx context.Context, command, value string) {
	if s.pub == nil {
		return
	}
	payload := fmt.Sprintf("%s:%s", command, value)
	if err := s.pub.Publish(ctx, infra.RedisChanWhitelistSignal, payload).Err(); err != nil {
		s.logger.Error("whitelist signal broadcast failed", zap.String("payload", payload), zap.Error(err))
	}
}
