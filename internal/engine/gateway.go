package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
)

// Виды ошибок для метрик и поля Reason у rejected/failed событий.
const (
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindExecution    = "execution"
	KindTimeout      = "timeout"
)

type GatewayConfig struct {
	DefaultTimeout    time.Duration
	DefaultDenyReason string
}

type ExecuteRequest struct {
	Command     string
	Args        []string
	Timeout     time.Duration // 0 - взять дефолт
	RequestedBy string
}

// Gateway — точка входа: классификация, выполнение, очередь апрувов, события.
type Gateway struct {
	registry *policy.Registry
	pdp      policy.Enforcer
	executor Executor
	queue    *ApprovalQueue
	notifier *Notifier
	metrics  *Metrics
	logger   *zap.Logger
	cfg      GatewayConfig
}

func NewGateway(registry *policy.Registry, exec Executor, notifier *Notifier, metrics *Metrics, logger *zap.Logger, cfg GatewayConfig) *Gateway {
	if cfg.DefaultDenyReason == "" {
		cfg.DefaultDenyReason = domain.DefaultDenyReason
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if notifier == nil {
		notifier = NewNotifier(logger, metrics)
	}
	return &Gateway{
		registry: registry,
		pdp:      policy.NewValidator(registry),
		executor: exec,
		queue:    NewApprovalQueue(),
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("gateway"),
		cfg:      cfg,
	}
}

// Ticket — результат Submit. Для safe-команд Result уже заполнен,
// для команд на апруве заполнен Pending и ждать нужно через Wait.
type Ticket struct {
	Verdict domain.Verdict
	Result  *domain.ExecutionResult
	Pending *domain.PendingCommand

	reply   <-chan outcome
	settled chan struct{} // Закрывается один раз, после записи out
	out     outcome
}

// AwaitingApproval — true, если исход решает оператор.
func (t *Ticket) AwaitingApproval() bool { return t.reply != nil }

// Wait блокируется до решения оператора. Отмена ctx прекращает только ожидание:
// запрос остается в очереди и может быть одобрен или отклонен позже.
func (t *Ticket) Wait(ctx context.Context) (*domain.ExecutionResult, error) {
	if t.reply == nil {
		return t.Result, nil
	}

	// Исход из reply получает ровно один ожидающий; остальные видят его через settled
	select {
	case o := <-t.reply:
		t.out = o
		close(t.settled)
		return o.result, o.err
	case <-t.settled:
		return t.out.result, t.out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute — полный путь запроса: возвращается только когда исход известен.
func (g *Gateway) Execute(ctx context.Context, req ExecuteRequest) (*domain.ExecutionResult, error) {
	ticket, err := g.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return ticket.Wait(ctx)
}

// Submit классифицирует запрос. Safe выполняется сразу, requires_approval
// ставится в очередь и возвращается с непустым Pending.
func (g *Gateway) Submit(ctx context.Context, req ExecuteRequest) (*Ticket, error) {
	verdict := g.pdp.Classify(req.Command, req.Args)
	class := verdict.Classify()
	g.metrics.Classifications.WithLabelValues(string(class)).Inc()

	args := append([]string(nil), req.Args...)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.DefaultTimeout
	}

	g.logger.Debug("command classified",
		zap.String("trace_id", TraceIDFromContext(ctx)),
		zap.String("command", req.Command),
		zap.String("class", string(class)),
		zap.String("reason", verdict.Reason))

	switch class {
	case domain.ClassAllowed:
		res, err := g.run(ctx, req.Command, args, timeout)
		if err != nil {
			g.publish(ctx, domain.Event{Type: domain.EventFailed, Command: req.Command, Args: args,
				Error: err.Error(), Reason: errorKind(err), Actor: req.RequestedBy})
			return nil, err
		}
		g.publish(ctx, domain.Event{Type: domain.EventExecuted, Command: req.Command, Args: args,
			Result: res, Actor: req.RequestedBy})
		return &Ticket{Verdict: verdict, Result: res}, nil

	case domain.ClassNeedsApproval:
		pending, reply := g.queue.Enqueue(domain.PendingCommand{
			Command:     req.Command,
			Args:        args,
			RequestedBy: req.RequestedBy,
			Timeout:     timeout,
			TraceID:     TraceIDFromContext(ctx),
			Reason:      verdict.Reason,
		})
		g.metrics.PendingCommands.Inc()
		g.publish(ctx, domain.Event{Type: domain.EventPending, Command: pending.Command, Args: pending.Args,
			Pending: &pending, Reason: verdict.Reason, Actor: req.RequestedBy})
		return &Ticket{Verdict: verdict, Pending: &pending, reply: reply, settled: make(chan struct{})}, nil

	case domain.ClassForbidden:
		err := fmt.Errorf("%w: %s", domain.ErrForbidden, verdict.Command)
		g.publish(ctx, domain.Event{Type: domain.EventRejected, Command: req.Command, Args: args,
			Error: err.Error(), Reason: KindForbidden, Actor: req.RequestedBy})
		return nil, err

	default:
		err := fmt.Errorf("%w: %s", domain.ErrUnauthorized, verdict.Command)
		g.publish(ctx, domain.Event{Type: domain.EventRejected, Command: req.Command, Args: args,
			Error: err.Error(), Reason: KindUnauthorized, Actor: req.RequestedBy})
		return nil, err
	}
}

// ApproveCommand выполняет ранее отложенную команду как есть, без повторной
// проверки: уровень мог измениться, но решение оператора относится к исходному запросу.
func (g *Gateway) ApproveCommand(ctx context.Context, id string) (*domain.ExecutionResult, error) {
	entry, err := g.queue.take(id)
	if err != nil {
		return nil, err
	}
	g.metrics.PendingCommands.Dec()

	cmd := entry.cmd
	actor := ActorFromContext(ctx)

	// Отключение оператора не должно убивать уже одобренный процесс
	res, execErr := g.run(context.WithoutCancel(ctx), cmd.Command, cmd.Args, cmd.Timeout)
	if execErr != nil {
		g.publish(ctx, domain.Event{Type: domain.EventFailed, TraceID: cmd.TraceID, Command: cmd.Command,
			Args: cmd.Args, Pending: &cmd, Error: execErr.Error(), Reason: errorKind(execErr), Actor: actor})
		entry.resolve(nil, execErr)
		return nil, execErr
	}

	g.publish(ctx, domain.Event{Type: domain.EventApproved, TraceID: cmd.TraceID, Command: cmd.Command,
		Args: cmd.Args, Pending: &cmd, Result: res, Actor: actor})
	entry.resolve(res, nil)
	return res, nil
}

// DenyCommand отклоняет запрос. Пустая причина заменяется дефолтной.
func (g *Gateway) DenyCommand(ctx context.Context, id, reason string) error {
	entry, err := g.queue.take(id)
	if err != nil {
		return err
	}
	g.metrics.PendingCommands.Dec()

	if reason == "" {
		reason = g.cfg.DefaultDenyReason
	}

	cmd := entry.cmd
	g.publish(ctx, domain.Event{Type: domain.EventDenied, TraceID: cmd.TraceID, Command: cmd.Command,
		Args: cmd.Args, Pending: &cmd, Reason: reason, Actor: ActorFromContext(ctx)})
	entry.resolve(nil, &domain.DeniedError{ID: cmd.ID, Reason: reason})
	return nil
}

func (g *Gateway) PendingCommands() []domain.PendingCommand {
	return g.queue.List()
}

func (g *Gateway) Whitelist() []domain.WhitelistEntry {
	return g.registry.List()
}

func (g *Gateway) AddToWhitelist(entry domain.WhitelistEntry) {
	g.registry.Add(entry)
}

// UpdateSecurityLevel не трогает ожидающие запросы.
func (g *Gateway) UpdateSecurityLevel(command string, level domain.SecurityLevel) {
	g.registry.UpdateLevel(command, level)
}

func (g *Gateway) RemoveFromWhitelist(command string) {
	g.registry.Remove(command)
}

func (g *Gateway) run(ctx context.Context, command string, args []string, timeout time.Duration) (*domain.ExecutionResult, error) {
	start := time.Now()
	res, err := g.executor.Run(ctx, command, args, timeout)

	status := "success"
	if err != nil {
		status = errorKind(err)
	}
	g.metrics.ExecutionDuration.WithLabelValues(policy.BaseName(command), status).Observe(time.Since(start).Seconds())
	return res, err
}

func (g *Gateway) publish(ctx context.Context, ev domain.Event) {
	ev.ID = uuid.New().String()
	ev.Timestamp = time.Now()
	if ev.TraceID == "" {
		ev.TraceID = TraceIDFromContext(ctx)
	}
	g.notifier.Publish(ctx, ev)
}

func errorKind(err error) string {
	var timeoutErr *domain.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.Is(err, domain.ErrForbidden):
		return KindForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindExecution
	}
}
