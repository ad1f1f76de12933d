package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/policy"
)

type execCall struct {
	command string
	args    []string
	timeout time.Duration
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []execCall
	fn    func(command string, args []string) (*domain.ExecutionResult, error)
}

func (f *fakeExecutor) Run(_ context.Context, command string, args []string, timeout time.Duration) (*domain.ExecutionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, execCall{command: command, args: append([]string(nil), args...), timeout: timeout})
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(command, args)
	}
	return &domain.ExecutionResult{Stdout: "ok:" + command}, nil
}

func (f *fakeExecutor) Calls() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.calls...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) HandleEvent(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) Last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	gw       *Gateway
	registry *policy.Registry
	exec     *fakeExecutor
	events   *eventRecorder
	notifier *Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	registry := policy.NewRegistry(logger,
		domain.WhitelistEntry{Command: "ls", Level: domain.LevelSafe},
		domain.WhitelistEntry{Command: "mv", Level: domain.LevelRequiresApproval},
		domain.WhitelistEntry{Command: "rm", Level: domain.LevelForbidden,
			AllowedArgs: []domain.ArgMatcher{domain.ExactArg("-f")}},
		domain.WhitelistEntry{Command: "git", Level: domain.LevelSafe,
			AllowedArgs: []domain.ArgMatcher{domain.MustPatternArg(`^(status|log)$`)}},
	)

	metrics := NewMetrics(nil)
	notifier := NewNotifier(logger, metrics)
	rec := &eventRecorder{}
	notifier.Subscribe(rec)

	exec := &fakeExecutor{}
	gw := NewGateway(registry, exec, notifier, metrics, logger, GatewayConfig{DefaultTimeout: 30 * time.Second})

	return &harness{gw: gw, registry: registry, exec: exec, events: rec, notifier: notifier}
}

func TestGateway_SafeExecutesImmediately(t *testing.T) {
	h := newHarness(t)

	res, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "/bin/ls", Args: []string{"-la"}})
	require.NoError(t, err)
	assert.Equal(t, "ok:/bin/ls", res.Stdout)

	calls := h.exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/bin/ls", calls[0].command, "executor receives the command as given")
	assert.Equal(t, []string{"-la"}, calls[0].args)
	assert.Equal(t, 30*time.Second, calls[0].timeout)

	assert.Equal(t, []domain.EventType{domain.EventExecuted}, h.events.Types())
	assert.Empty(t, h.gw.PendingCommands())
}

func TestGateway_UnknownIsUnauthorized(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "curl", Args: []string{"http://x"}})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Empty(t, h.exec.Calls())
	assert.Empty(t, h.gw.PendingCommands())
	assert.Equal(t, []domain.EventType{domain.EventRejected}, h.events.Types())
	assert.Equal(t, KindUnauthorized, h.events.Last().Reason)
}

func TestGateway_ForbiddenIgnoresMatchers(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"-f"}, {"-rf", "/"}, nil} {
		_, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "rm", Args: args})
		require.ErrorIs(t, err, domain.ErrForbidden)
	}
	assert.Empty(t, h.exec.Calls())
	assert.Empty(t, h.gw.PendingCommands())
}

func TestGateway_ApproveRunsAndResolvesWaiter(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{
		Command:     "mv",
		Args:        []string{"a", "b"},
		Timeout:     time.Second,
		RequestedBy: "agent-7",
	})
	require.NoError(t, err)
	require.True(t, ticket.AwaitingApproval())
	require.NotNil(t, ticket.Pending)
	assert.Empty(t, h.exec.Calls(), "nothing runs before approval")

	pending := h.gw.PendingCommands()
	require.Len(t, pending, 1)
	assert.Equal(t, ticket.Pending.ID, pending[0].ID)
	assert.Equal(t, "agent-7", pending[0].RequestedBy)
	assert.Equal(t, []string{"a", "b"}, pending[0].Args)
	assert.False(t, pending[0].RequestedAt.IsZero())

	res, err := h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok:mv", res.Stdout)

	waited, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, waited)

	calls := h.exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, time.Second, calls[0].timeout)

	assert.Empty(t, h.gw.PendingCommands())
	assert.Equal(t, []domain.EventType{domain.EventPending, domain.EventApproved}, h.events.Types())

	_, err = h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, h.gw.DenyCommand(context.Background(), ticket.Pending.ID, ""), domain.ErrNotFound)
	assert.Len(t, h.exec.Calls(), 1)
}

func TestGateway_DenyDeliversReason(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"default reason", "", domain.DefaultDenyReason},
		{"operator reason", "too risky", "too risky"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
			require.NoError(t, err)

			require.NoError(t, h.gw.DenyCommand(WithActor(context.Background(), "op-1"), ticket.Pending.ID, tt.reason))

			_, err = ticket.Wait(context.Background())
			var denied *domain.DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tt.want, denied.Reason)
			assert.Equal(t, ticket.Pending.ID, denied.ID)

			last := h.events.Last()
			assert.Equal(t, domain.EventDenied, last.Type)
			assert.Equal(t, tt.want, last.Reason)
			assert.Equal(t, "op-1", last.Actor)

			_, err = h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
	assert.Empty(t, h.exec.Calls())
}

func TestGateway_ArgMismatchGoesToApproval(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "git", Args: []string{"push"}})
	require.NoError(t, err)
	require.True(t, ticket.AwaitingApproval())
	assert.Equal(t, domain.LevelRequiresApproval, ticket.Verdict.Level)
	assert.NotEmpty(t, ticket.Pending.Reason)

	ticket, err = h.gw.Submit(context.Background(), ExecuteRequest{Command: "git", Args: []string{"status"}})
	require.NoError(t, err)
	assert.False(t, ticket.AwaitingApproval())
}

func TestGateway_ApproveDoesNotRevalidate(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
	require.NoError(t, err)

	h.gw.UpdateSecurityLevel("mv", domain.LevelForbidden)
	h.gw.RemoveFromWhitelist("mv")

	_, err = h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
	require.NoError(t, err)

	calls := h.exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mv", calls[0].command)
	assert.Equal(t, []string{"a", "b"}, calls[0].args)
}

func TestGateway_ApproveFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.exec.fn = func(command string, _ []string) (*domain.ExecutionResult, error) {
		return nil, &domain.ExecutionError{Command: command, ExitCode: 1, Stderr: "boom", Err: errors.New("exit status 1")}
	}

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)

	_, err = ticket.Wait(context.Background())
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "boom", execErr.Stderr)

	assert.Equal(t, []domain.EventType{domain.EventPending, domain.EventFailed}, h.events.Types())
	assert.Empty(t, h.gw.PendingCommands())
}

func TestGateway_SafeFailureEmitsFailed(t *testing.T) {
	h := newHarness(t)
	h.exec.fn = func(command string, _ []string) (*domain.ExecutionResult, error) {
		return nil, &domain.TimeoutError{Command: command, Timeout: time.Millisecond}
	}

	_, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "ls"})
	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	last := h.events.Last()
	assert.Equal(t, domain.EventFailed, last.Type)
	assert.Equal(t, KindTimeout, last.Reason)
}

func TestGateway_ExactlyOneResolution(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
	require.NoError(t, err)
	id := ticket.Pending.ID

	var wins, notFound int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			var err error
			if i%2 == 0 {
				_, err = h.gw.ApproveCommand(context.Background(), id)
			} else {
				err = h.gw.DenyCommand(context.Background(), id, "race")
			}
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, domain.ErrNotFound):
				atomic.AddInt32(&notFound, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(15), notFound)
	assert.LessOrEqual(t, len(h.exec.Calls()), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = ticket.Wait(ctx)
	assert.NoError(t, ctx.Err(), "waiter must be resolved exactly once")
}

func TestGateway_WaitCancelKeepsPending(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.gw.Execute(ctx, ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
		done <- err
	}()

	require.Eventually(t, func() bool { return len(h.gw.PendingCommands()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	pending := h.gw.PendingCommands()
	require.Len(t, pending, 1, "abandoned wait does not cancel the request")

	_, err := h.gw.ApproveCommand(context.Background(), pending[0].ID)
	require.NoError(t, err)
	assert.Len(t, h.exec.Calls(), 1)
}

func TestGateway_ExecuteBlocksUntilApproved(t *testing.T) {
	h := newHarness(t)

	type result struct {
		res *domain.ExecutionResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
		done <- result{res, err}
	}()

	var id string
	require.Eventually(t, func() bool {
		p := h.gw.PendingCommands()
		if len(p) == 1 {
			id = p[0].ID
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("execute returned before decision")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := h.gw.ApproveCommand(context.Background(), id)
	require.NoError(t, err)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "ok:mv", got.res.Stdout)
}

func TestTicket_ConcurrentWaitersHonorOwnDeadline(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv", Args: []string{"a", "b"}})
	require.NoError(t, err)
	require.True(t, ticket.AwaitingApproval())

	first := make(chan error, 1)
	go func() {
		_, err := ticket.Wait(context.Background())
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// Второй ожидающий не должен висеть за первым до решения оператора
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = ticket.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	_, err = h.gw.ApproveCommand(context.Background(), ticket.Pending.ID)
	require.NoError(t, err)
	require.NoError(t, <-first)

	res, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok:mv", res.Stdout)
}

func TestGateway_PanickingSubscriberIsIsolated(t *testing.T) {
	h := newHarness(t)

	var after int32
	h.notifier.Subscribe(SubscriberFunc(func(context.Context, domain.Event) { panic("ui crashed") }))
	h.notifier.Subscribe(SubscriberFunc(func(context.Context, domain.Event) { atomic.AddInt32(&after, 1) }))

	res, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "ls"})
	require.NoError(t, err)
	assert.NotNil(t, res)

	ticket, err := h.gw.Submit(context.Background(), ExecuteRequest{Command: "mv"})
	require.NoError(t, err)
	require.NoError(t, h.gw.DenyCommand(context.Background(), ticket.Pending.ID, ""))

	_, err = ticket.Wait(context.Background())
	var denied *domain.DeniedError
	assert.ErrorAs(t, err, &denied)

	assert.Equal(t, int32(3), atomic.LoadInt32(&after))
	assert.Len(t, h.events.Types(), 3)
}

func TestGateway_WhitelistOps(t *testing.T) {
	h := newHarness(t)

	h.gw.AddToWhitelist(domain.WhitelistEntry{Command: "curl", Level: domain.LevelSafe})
	_, err := h.gw.Execute(context.Background(), ExecuteRequest{Command: "curl"})
	require.NoError(t, err)

	h.gw.UpdateSecurityLevel("curl", domain.LevelForbidden)
	_, err = h.gw.Execute(context.Background(), ExecuteRequest{Command: "curl"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	h.gw.RemoveFromWhitelist("curl")
	_, err = h.gw.Execute(context.Background(), ExecuteRequest{Command: "curl"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	h.gw.RemoveFromWhitelist("curl")
	h.gw.UpdateSecurityLevel("curl", domain.LevelSafe)
	for _, e := range h.gw.Whitelist() {
		assert.NotEqual(t, "curl", e.Command)
	}
}

func TestGateway_EventsCarryTrace(t *testing.T) {
	h := newHarness(t)
	ctx := WithTraceID(context.Background(), "trace-1")

	ticket, err := h.gw.Submit(ctx, ExecuteRequest{Command: "mv"})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", ticket.Pending.TraceID)

	// Решение приходит из другого запроса, но событие сохраняет исходный trace
	_, err = h.gw.ApproveCommand(WithTraceID(context.Background(), "trace-2"), ticket.Pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "trace-1", h.events.Last().TraceID)
}
