package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// goExecutor runs every task on its own goroutine, unconditionally — good
// enough liveness for tests that don't exercise backpressure.
type goExecutor struct{}

func (goExecutor) Submit(task func()) error {
	go task()
	return nil
}

// cappedExecutor allows at most n concurrently outstanding tasks and
// rejects anything beyond that — used to exercise ErrRejected (S6).
type cappedExecutor struct {
	sem chan struct{}
}

func newCappedExecutor(n int) *cappedExecutor {
	return &cappedExecutor{sem: make(chan struct{}, n)}
}

func (c *cappedExecutor) Submit(task func()) error {
	select {
	case c.sem <- struct{}{}:
	default:
		return errors.New("capacity exhausted")
	}
	go func() {
		defer func() { <-c.sem }()
		task()
	}()
	return nil
}

// recordingInvoker appends every delivered notification, per listener, in
// the order the Invoker is called — which is what P1/P2 check.
type recordingInvoker struct {
	mu       sync.Mutex
	delivery map[dispatch.Listener][]dispatch.Notification
	active   map[dispatch.Listener]bool
	overlap  bool
	onInvoke func(l dispatch.Listener, n dispatch.Notification) error
}

func newRecordingInvoker() *recordingInvoker {
	return &recordingInvoker{
		delivery: make(map[dispatch.Listener][]dispatch.Notification),
		active:   make(map[dispatch.Listener]bool),
	}
}

func (r *recordingInvoker) Invoke(_ context.Context, l dispatch.Listener, n dispatch.Notification) error {
	r.mu.Lock()
	if r.active[l] {
		r.overlap = true
	}
	r.active[l] = true
	r.mu.Unlock()

	var err error
	if r.onInvoke != nil {
		err = r.onInvoke(l, n)
	}

	r.mu.Lock()
	r.delivery[l] = append(r.delivery[l], n)
	r.active[l] = false
	r.mu.Unlock()

	return err
}

func (r *recordingInvoker) deliveredTo(l dispatch.Listener) []dispatch.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dispatch.Notification, len(r.delivery[l]))
	copy(out, r.delivery[l])
	return out
}

func newTestDispatcher(t *testing.T, exec dispatch.Executor, inv dispatch.Invoker, capacity int) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.New(dispatch.Config{
		Executor:         exec,
		Invoker:          inv,
		MaxQueueCapacity: capacity,
		Name:             "test",
		PollInterval:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// S1: single listener, single producer, sequential submission preserves order.
func TestDispatcher_SingleListenerOrder(t *testing.T) {
	inv := newRecordingInvoker()
	d := newTestDispatcher(t, goExecutor{}, inv, 4)

	listener := new(int)
	for _, n := range []string{"a", "b", "c"} {
		if err := d.Submit(context.Background(), listener, n); err != nil {
			t.Fatalf("submit %q: %v", n, err)
		}
	}

	waitFor(t, time.Second, func() bool { return len(inv.deliveredTo(listener)) == 3 })

	got := inv.deliveredTo(listener)
	want := []dispatch.Notification{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

// S2: a recoverable invoker error on the middle notification does not stop
// the remaining notifications from being delivered, in order.
func TestDispatcher_RecoverableInvokerErrorContinues(t *testing.T) {
	inv := newRecordingInvoker()
	inv.onInvoke = func(_ dispatch.Listener, n dispatch.Notification) error {
		if n == "b" {
			return errors.New("transient delivery failure")
		}
		return nil
	}
	d := newTestDispatcher(t, goExecutor{}, inv, 4)

	listener := new(int)
	if err := d.SubmitAll(context.Background(), listener, []dispatch.Notification{"a", "b", "c"}); err != nil {
		t.Fatalf("submitAll: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(inv.deliveredTo(listener)) == 3 })
	got := inv.deliveredTo(listener)
	for i, want := range []string{"a", "b", "c"} {
		if got[i] != want {
			t.Fatalf("position %d: got %v want %q", i, got[i], want)
		}
	}
}

// A slow invoker and a small queue capacity still deliver everything, in
// order, with the producer blocking inside offer rather than dropping work.
func TestDispatcher_SlowInvokerBackpressure(t *testing.T) {
	inv := newRecordingInvoker()
	var delivered int
	var mu sync.Mutex
	inv.onInvoke = func(dispatch.Listener, dispatch.Notification) error {
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}

	d, err := dispatch.New(dispatch.Config{
		Executor:         goExecutor{},
		Invoker:          inv,
		MaxQueueCapacity: 2,
		OfferTimeout:     50 * time.Millisecond,
		MaxOfferAttempts: 200,
		PollInterval:     time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	listener := new(int)
	const total = 50
	for i := 0; i < total; i++ {
		if err := d.Submit(context.Background(), listener, i); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	waitFor(t, 5*time.Second, func() bool { return len(inv.deliveredTo(listener)) == total })

	got := inv.deliveredTo(listener)
	for i := 0; i < total; i++ {
		if got[i] != i {
			t.Fatalf("order broken at %d: got %v", i, got[i])
		}
	}
}

// S4: a retire/resubmit race must deliver the second producer's
// notification exactly once, whichever task ends up owning it.
func TestDispatcher_RetireResubmitRace(t *testing.T) {
	for attempt := 0; attempt < 50; attempt++ {
		inv := newRecordingInvoker()
		d := newTestDispatcher(t, goExecutor{}, inv, 4)
		listener := new(int)

		if err := d.Submit(context.Background(), listener, "first"); err != nil {
			t.Fatalf("submit first: %v", err)
		}
		// Give the task a chance to drain "first" and start considering
		// retirement before the second producer races in.
		time.Sleep(time.Millisecond)
		if err := d.Submit(context.Background(), listener, "second"); err != nil {
			t.Fatalf("submit second: %v", err)
		}

		waitFor(t, time.Second, func() bool { return len(inv.deliveredTo(listener)) == 2 })

		got := inv.deliveredTo(listener)
		seen := map[dispatch.Notification]int{}
		for _, n := range got {
			seen[n]++
		}
		if seen["first"] != 1 || seen["second"] != 1 {
			t.Fatalf("attempt %d: expected exactly one delivery each, got %v", attempt, got)
		}
	}
}

// S5: two listener instances that consider themselves equal (per a
// caller-defined Equal method) must still get independent queues/tasks.
type buggyEqualsListener struct{ id int }

// Equal always reports true — if the dispatcher ever consulted this, S5
// would fail. It must not: ListenerKey never calls it.
func (buggyEqualsListener) Equal(buggyEqualsListener) bool { return true }

func TestDispatcher_ListenerIdentityIgnoresOwnEquality(t *testing.T) {
	inv := newRecordingInvoker()
	d := newTestDispatcher(t, goExecutor{}, inv, 4)

	a := &buggyEqualsListener{id: 1}
	b := &buggyEqualsListener{id: 2}

	if err := d.Submit(context.Background(), a, "for-a"); err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(context.Background(), b, "for-b"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		return len(inv.deliveredTo(a)) == 1 && len(inv.deliveredTo(b)) == 1
	})

	if got := inv.deliveredTo(a); len(got) != 1 || got[0] != "for-a" {
		t.Fatalf("listener a got %v", got)
	}
	if got := inv.deliveredTo(b); len(got) != 1 || got[0] != "for-b" {
		t.Fatalf("listener b got %v", got)
	}
}

// S6: when the worker pool is saturated, a submit that requires creating a
// fresh task surfaces ErrRejected, while a submit to an already-live task
// still succeeds.
func TestDispatcher_RejectedWhenPoolSaturated(t *testing.T) {
	exec := newCappedExecutor(1)
	inv := newRecordingInvoker()
	blockCh := make(chan struct{})
	inv.onInvoke = func(dispatch.Listener, dispatch.Notification) error {
		<-blockCh
		return nil
	}
	d := newTestDispatcher(t, exec, inv, 4)

	alive := new(int)
	if err := d.Submit(context.Background(), alive, "keep-busy"); err != nil {
		t.Fatalf("submit to alive listener: %v", err)
	}
	// Wait for the pool slot to actually be taken by alive's task.
	waitFor(t, time.Second, func() bool {
		select {
		case exec.sem <- struct{}{}:
			<-exec.sem
			return false
		default:
			return true
		}
	})

	fresh := new(int)
	if err := d.Submit(context.Background(), fresh, "needs-new-task"); !errors.Is(err, dispatch.ErrRejected) {
		t.Fatalf("expected ErrRejected for a listener requiring a new task, got %v", err)
	}

	// The already-alive listener can still be submitted to.
	if err := d.Submit(context.Background(), alive, "still-fine"); err != nil {
		t.Fatalf("submit to alive listener while saturated: %v", err)
	}

	close(blockCh)
}

// P4: once all producers stop and queues drain, the registry is empty —
// observed here via ListenerStats returning no rows.
func TestDispatcher_RegistryEmptiesAfterDrain(t *testing.T) {
	inv := newRecordingInvoker()
	d := newTestDispatcher(t, goExecutor{}, inv, 4)

	for i := 0; i < 20; i++ {
		listener := new(int)
		if err := d.Submit(context.Background(), listener, i); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool { return len(d.ListenerStats()) == 0 })
}

// P5: construction with a non-positive capacity fails with ErrBadCapacity.
func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := dispatch.New(dispatch.Config{
			Executor:         goExecutor{},
			Invoker:          dispatch.InvokerFunc(func(context.Context, dispatch.Listener, dispatch.Notification) error { return nil }),
			MaxQueueCapacity: capacity,
		})
		if !errors.Is(err, dispatch.ErrBadCapacity) {
			t.Fatalf("capacity %d: expected ErrBadCapacity, got %v", capacity, err)
		}
	}
}

// P6: submit with a nil listener or nil notification is a silent no-op.
func TestDispatcher_NilInputsAreSilentlyIgnored(t *testing.T) {
	inv := newRecordingInvoker()
	d := newTestDispatcher(t, goExecutor{}, inv, 4)

	if err := d.Submit(context.Background(), nil, "x"); err != nil {
		t.Fatalf("nil listener: %v", err)
	}
	if err := d.Submit(context.Background(), new(int), nil); err != nil {
		t.Fatalf("nil notification: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if stats := d.ListenerStats(); len(stats) != 0 {
		t.Fatalf("expected no tasks created, got %v", stats)
	}
}

// P2, stress form: no listener is ever invoked concurrently with itself,
// across many listeners and many producers per listener.
func TestDispatcher_NoConcurrentDeliveryPerListener(t *testing.T) {
	inv := newRecordingInvoker()
	inv.onInvoke = func(dispatch.Listener, dispatch.Notification) error {
		time.Sleep(time.Millisecond)
		return nil
	}
	d := newTestDispatcher(t, goExecutor{}, inv, 8)

	const listeners = 10
	const producers = 4
	const perProducer = 10

	var wg sync.WaitGroup
	for l := 0; l < listeners; l++ {
		listener := new(int)
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(listener dispatch.Listener, p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					_ = d.Submit(context.Background(), listener, fmt.Sprintf("p%d-%d", p, i))
				}
			}(listener, p)
		}
	}
	wg.Wait()

	waitFor(t, 5*time.Second, func() bool { return len(d.ListenerStats()) == 0 })

	inv.mu.Lock()
	overlap := inv.overlap
	inv.mu.Unlock()
	if overlap {
		t.Fatal("observed concurrent delivery to the same listener")
	}
}

// Fatal invoker errors retire the task after the failing notification,
// without delivering further queued notifications for that listener.
func TestDispatcher_FatalInvokerErrorStopsDrain(t *testing.T) {
	inv := newRecordingInvoker()
	inv.onInvoke = func(_ dispatch.Listener, n dispatch.Notification) error {
		if n == "boom" {
			return &dispatch.FatalInvokerError{Err: errors.New("listener gone")}
		}
		return nil
	}
	d := newTestDispatcher(t, goExecutor{}, inv, 8)

	listener := new(int)
	if err := d.SubmitAll(context.Background(), listener, []dispatch.Notification{"a", "boom", "c"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return len(d.ListenerStats()) == 0 })

	got := inv.deliveredTo(listener)
	for _, n := range got {
		if n == "c" {
			t.Fatalf("expected drain to stop at the fatal notification, but %q was delivered: %v", n, got)
		}
	}
}
