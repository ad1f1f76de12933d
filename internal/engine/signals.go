package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
)

// SignalRemove — значение сигнала, удаляющее команду из белого списка.
const SignalRemove = "remove"

// PolicySignalListener применяет оперативные правки белого списка из Redis.
// Формат сообщения "command:level" или "command:remove", например "curl:forbidden".
type PolicySignalListener struct {
	rdb      redis.UniversalClient
	registry *policy.Registry
	channel  string
	logger   *zap.Logger
}

func NewPolicySignalListener(rdb redis.UniversalClient, registry *policy.Registry, channel string, logger *zap.Logger) *PolicySignalListener {
	return &PolicySignalListener{
		rdb:      rdb,
		registry: registry,
		channel:  channel,
		logger:   logger.With(zap.String("mod", "policy_signal")),
	}
}

// Start блокируется до отмены ctx.
func (l *PolicySignalListener) Start(ctx context.Context) {
	l.logger.Info("whitelist signal listener started", zap.String("chan", l.channel))
	ListenResilient(ctx, l.rdb, l.logger, l.channel, nil, func(payload string) {
		if err := l.Apply(payload); err != nil {
			l.logger.Error("invalid signal", zap.String("payload", payload), zap.Error(err))
		}
	})
	l.logger.Info("whitelist signal listener stopped")
}

// Apply разбирает и применяет один сигнал.
func (l *PolicySignalListener) Apply(payload string) error {
	command, value, err := ParseSignal(payload)
	if err != nil {
		return err
	}

	if value == SignalRemove {
		l.registry.Remove(command)
		l.logger.Warn("command removed by signal", zap.String("command", command))
		return nil
	}

	level, err := domain.ParseSecurityLevel(value)
	if err != nil {
		return err
	}
	if !l.registry.UpdateLevel(command, level) {
		l.logger.Warn("signal for unknown command ignored", zap.String("command", command))
		return nil
	}
	l.logger.Warn("security level changed by signal",
		zap.String("command", command),
		zap.String("level", string(level)))
	return nil
}

// ParseSignal делит по последнему ':'.
func ParseSignal(payload string) (command, value string, err error) {
	i := strings.LastIndex(payload, ":")
	if i <= 0 || i == len(payload)-1 {
		return "", "", fmt.Errorf("invalid signal format %q", payload)
	}
	command = strings.TrimSpace(payload[:i])
	value = strings.TrimSpace(payload[i+1:])
	if command == "" || value == "" {
		return "", "", fmt.Errorf("invalid signal format %q", payload)
	}
	return command, value, nil
}
