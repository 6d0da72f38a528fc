package parmap

import (
	"context"
	"errors"
	"testing"
	"time"
)

// A task that blows its per-item deadline is marked TimedOutError even
// when it would eventually have returned its own domain error, and the
// recycled worker keeps serving subsequent items.
func TestRun_PerItemTimeout(t *testing.T) {
	domainErr := errors.New("late domain failure")

	fn := func(ctx context.Context, env *Env, n int) (int, error) {
		if n == 0 {
			time.Sleep(150 * time.Millisecond) // ignores ctx on purpose
			return 0, domainErr
		}
		return n * 2, nil
	}

	outcomes, err := Run(context.Background(), []int{0, 1, 2, 3}, fn,
		WithBackend(BackendIsolated),
		WithWorkerCount(1),
		WithPerItemTimeout(30*time.Millisecond))
	if err != nil {
		t.Fatalf("timeout must not abort the run: %v", err)
	}

	var timedOut *TimedOutError
	if !errors.As(outcomes[0].Err, &timedOut) {
		t.Fatalf("index 0: expected *TimedOutError, got %v", outcomes[0].Err)
	}
	if errors.Is(outcomes[0].Err, domainErr) {
		t.Error("index 0: domain error must be discarded once the deadline fired")
	}
	if timedOut.Index != 0 || timedOut.Timeout != 30*time.Millisecond {
		t.Errorf("unexpected timeout details: %+v", timedOut)
	}

	// Items 1..3 ran on the replacement worker.
	for i := 1; i < 4; i++ {
		if !outcomes[i].Ok() || outcomes[i].Value != i*2 {
			t.Errorf("index %d: expected %d on replacement worker, got %+v", i, i*2, outcomes[i])
		}
	}
}

func TestRun_FastItemsUnaffectedByTimeout(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	outcomes, err := Run(context.Background(), items, double,
		WithWorkerCount(4),
		WithPerItemTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, o := range outcomes {
		if !o.Ok() {
			t.Errorf("index %d: unexpected error %v", i, o.Err)
		}
	}
}

func TestEngine_CooperativeCancel(t *testing.T) {
	e, err := New[int, int](
		WithWorkerCount(1),
		WithCancelPolicy(CancelCooperative))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Shutdown()

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	started := make(chan struct{}, len(items))
	fn := func(ctx context.Context, env *Env, n int) (int, error) {
		started <- struct{}{}
		time.Sleep(20 * time.Millisecond)
		return n, nil
	}

	go func() {
		<-started
		e.Cancel()
	}()

	outcomes, err := e.Run(context.Background(), items, fn)
	if err == nil {
		t.Fatal("expected abort error after cancel")
	}

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %v", err)
	}
	if !errors.Is(err, ErrRunCanceled) {
		t.Errorf("expected cause ErrRunCanceled, got %v", abort.Cause)
	}
	if len(abort.Unfinished) == 0 {
		t.Fatal("expected unfinished items after cancel")
	}
	if len(outcomes) != len(items) {
		t.Fatalf("outcome slice must keep length %d, got %d", len(items), len(outcomes))
	}

	// In-flight items drained naturally: every finished slot is a
	// success, every unfinished index is accounted for.
	unfinished := make(map[int]bool, len(abort.Unfinished))
	for _, idx := range abort.Unfinished {
		unfinished[idx] = true
	}
	for i, o := range outcomes {
		if unfinished[i] {
			if o.Err != nil {
				t.Errorf("index %d: unfinished items must carry no error, got %v", i, o.Err)
			}
			continue
		}
		if !o.Ok() || o.Value != i {
			t.Errorf("index %d: expected drained completion, got %+v", i, o)
		}
	}
}

func TestEngine_HardCancel(t *testing.T) {
	e, err := New[int, int](
		WithWorkerCount(2),
		WithCancelPolicy(CancelHard))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Shutdown()

	started := make(chan struct{}, 2)
	fn := func(ctx context.Context, env *Env, n int) (int, error) {
		started <- struct{}{}
		<-ctx.Done() // cooperative task: quits when hard-stopped
		return 0, ctx.Err()
	}

	go func() {
		<-started
		<-started
		e.Cancel()
	}()

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = e.Run(context.Background(), []int{0, 1, 2, 3}, fn)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hard cancel did not stop the run")
	}

	var abort *AbortError
	if !errors.As(runErr, &abort) {
		t.Fatalf("expected *AbortError after hard cancel, got %v", runErr)
	}
	// Same cause as a cooperative cancel, not the run-internal
	// context.Canceled.
	if !errors.Is(runErr, ErrRunCanceled) {
		t.Errorf("expected cause ErrRunCanceled, got %v", abort.Cause)
	}

	// Items 2 and 3 were never dispatched; the two in-flight items may
	// land as unfinished or as canceled completions depending on timing.
	unfinished := make(map[int]bool, len(abort.Unfinished))
	for _, idx := range abort.Unfinished {
		unfinished[idx] = true
	}
	if !unfinished[2] || !unfinished[3] {
		t.Errorf("expected items 2 and 3 unfinished, got %v", abort.Unfinished)
	}
}

func TestRun_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fn := func(c context.Context, env *Env, n int) (int, error) {
		if n == 0 {
			cancel()
		}
		time.Sleep(5 * time.Millisecond)
		return n, nil
	}

	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	_, err := Run(ctx, items, fn, WithWorkerCount(1))
	if err == nil {
		t.Fatal("expected abort after parent context cancellation")
	}
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled cause, got %v", abort.Cause)
	}
}
