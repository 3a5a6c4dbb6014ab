package goSession

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

type flakyStorage struct {
	mu       sync.Mutex
	inner    *storage.Memory
	saveErr  error
	loadErr  error
	saves    int
	lastSave []byte
}

func newFlakyStorage() *flakyStorage {
	return &flakyStorage{inner: storage.NewMemory()}
}

func (f *flakyStorage) Load(ctx context.Context, slot string) ([]byte, error) {
	f.mu.Lock()
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.inner.Load(ctx, slot)
}

func (f *flakyStorage) Save(ctx context.Context, slot string, data []byte) error {
	f.mu.Lock()
	f.saves++
	err := f.saveErr
	if err == nil {
		f.lastSave = append([]byte(nil), data...)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.inner.Save(ctx, slot, data)
}

func (f *flakyStorage) setSaveErr(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

type storeHarness struct {
	store   *Store
	queue   *Queue
	backend storage.Storage
	sink    *ChannelSink
}

func newStoreHarness(t *testing.T, backend storage.Storage) *storeHarness {
	t.Helper()

	if backend == nil {
		backend = storage.NewMemory()
	}
	queue := NewQueue()
	sink := NewChannelSink(64)

	s, err := New().
		WithStorage(backend).
		WithScheduler(queue).
		WithEventSink(sink).
		WithMetricsEnabled(true).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(s.Close)

	return &storeHarness{store: s, queue: queue, backend: backend, sink: sink}
}

func (h *storeHarness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.store.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func waitEvent(t *testing.T, sink *ChannelSink, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func assertDerivedInvariant(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	if snap.IsAuthenticated != (snap.User != nil) {
		t.Fatalf("isAuthenticated=%v but user present=%v", snap.IsAuthenticated, snap.User != nil)
	}
}

func TestNewStoreStartsEmpty(t *testing.T) {
	h := newStoreHarness(t, nil)

	snap := h.store.Snapshot()
	if snap.User != nil || snap.HasToken || snap.IsAuthenticated {
		t.Fatalf("expected empty session, got %+v", snap)
	}
}

func TestLoginSetsAllFields(t *testing.T) {
	h := newStoreHarness(t, nil)
	u := User{"id": 1, "name": "A"}

	h.store.Login(u, "tok1")

	if got := h.store.User(); !reflect.DeepEqual(got, u) {
		t.Fatalf("expected user %v, got %v", u, got)
	}
	if tok, ok := h.store.Token(); !ok || tok != "tok1" {
		t.Fatalf("expected token tok1, got %q (present=%v)", tok, ok)
	}
	if !h.store.IsAuthenticated() {
		t.Fatal("expected authenticated after login")
	}
}

func TestLoginIsSingleAtomicChange(t *testing.T) {
	h := newStoreHarness(t, nil)

	var changes []Change
	h.store.Subscribe(FieldAll, func(c Change) { changes = append(changes, c) })

	h.store.Login(User{"id": 1}, "tok1")

	if len(changes) != 0 {
		t.Fatal("subscriber ran inline with the mutation")
	}
	h.queue.Flush()

	if len(changes) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(changes))
	}
	c := changes[0]
	if !c.Fields.Has(FieldUser | FieldToken | FieldAuthenticated) {
		t.Fatalf("expected all fields changed, got %s", c.Fields)
	}
	if !c.Snapshot.IsAuthenticated || !c.Snapshot.HasToken || c.Snapshot.Token != "tok1" || c.Snapshot.User == nil {
		t.Fatalf("partial snapshot observed: %+v", c.Snapshot)
	}
}

func TestLoginNilUserStillAuthenticated(t *testing.T) {
	h := newStoreHarness(t, nil)

	h.store.Login(nil, "tok")

	if !h.store.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
	if h.store.User() == nil {
		t.Fatal("expected empty user record, got nil")
	}
	assertDerivedInvariant(t, h.store)
}

func TestLogoutClearsEverythingRegardlessOfPriorState(t *testing.T) {
	prepare := map[string]func(s *Store){
		"empty":      func(*Store) {},
		"logged in":  func(s *Store) { s.Login(User{"id": 1}, "tok") },
		"token only": func(s *Store) { tok := "t"; s.SetToken(&tok) },
		"user only":  func(s *Store) { s.SetUser(User{"id": 2}) },
	}

	for name, prep := range prepare {
		t.Run(name, func(t *testing.T) {
			h := newStoreHarness(t, nil)
			prep(h.store)

			h.store.Logout()

			snap := h.store.Snapshot()
			if snap.User != nil || snap.HasToken || snap.Token != "" || snap.IsAuthenticated {
				t.Fatalf("expected cleared session, got %+v", snap)
			}
		})
	}
}

func TestSetUserDerivesAuthenticatedAndKeepsToken(t *testing.T) {
	h := newStoreHarness(t, nil)
	tok := "keep"
	h.store.SetToken(&tok)

	h.store.SetUser(User{"id": 7})
	if !h.store.IsAuthenticated() {
		t.Fatal("expected authenticated after SetUser")
	}

	h.store.SetUser(nil)
	if h.store.IsAuthenticated() {
		t.Fatal("expected unauthenticated after SetUser(nil)")
	}
	if got, ok := h.store.Token(); !ok || got != "keep" {
		t.Fatalf("SetUser must not touch token, got %q present=%v", got, ok)
	}
}

func TestSetTokenDoesNotTouchUser(t *testing.T) {
	h := newStoreHarness(t, nil)
	h.store.SetUser(User{"id": 1})

	tok := "abc"
	h.store.SetToken(&tok)
	h.store.SetToken(nil)

	if _, ok := h.store.Token(); ok {
		t.Fatal("expected token cleared")
	}
	if !h.store.IsAuthenticated() || h.store.User() == nil {
		t.Fatal("SetToken must not touch user")
	}
}

func TestEmptyStringIsAPresentToken(t *testing.T) {
	h := newStoreHarness(t, nil)
	empty := ""
	h.store.SetToken(&empty)

	if _, ok := h.store.Token(); !ok {
		t.Fatal("expected empty string to be a present token")
	}
}

func TestUpdateUserMergesShallow(t *testing.T) {
	h := newStoreHarness(t, nil)
	h.store.Login(User{"id": 1, "name": "A", "prefs": map[string]any{"lang": "en"}}, "tok1")

	if !h.store.UpdateUser(User{"name": "B", "phone": "555"}) {
		t.Fatal("expected update to apply")
	}

	want := User{"id": 1, "name": "B", "phone": "555", "prefs": map[string]any{"lang": "en"}}
	if got := h.store.User(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if tok, _ := h.store.Token(); tok != "tok1" {
		t.Fatalf("expected token unchanged, got %q", tok)
	}
	if !h.store.IsAuthenticated() {
		t.Fatal("expected still authenticated")
	}
}

func TestUpdateUserWithoutUserIsNoop(t *testing.T) {
	h := newStoreHarness(t, nil)

	var notified int
	h.store.Subscribe(FieldAll, func(Change) { notified++ })

	if h.store.UpdateUser(User{"name": "B"}) {
		t.Fatal("expected no-op when no user is present")
	}
	h.queue.Flush()

	if h.store.User() != nil || h.store.IsAuthenticated() {
		t.Fatal("expected session to stay anonymous")
	}
	if notified != 0 {
		t.Fatalf("expected no notifications, got %d", notified)
	}
	if got := h.store.Metrics().Value(MetricUpdateUserNoop); got != 1 {
		t.Fatalf("expected noop metric 1, got %d", got)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	h := newStoreHarness(t, nil)
	in := User{"name": "A"}
	h.store.Login(in, "tok")

	in["name"] = "mutated input"
	out := h.store.User()
	out["name"] = "mutated output"

	if got := h.store.User()["name"]; got != "A" {
		t.Fatalf("store state leaked through a shared map, got %v", got)
	}
}

func TestDerivedInvariantHoldsForRandomSequences(t *testing.T) {
	h := newStoreHarness(t, nil)
	rng := rand.New(rand.NewSource(42))
	tok := "t"

	ops := []func(){
		func() { h.store.SetUser(User{"id": rng.Intn(5)}) },
		func() { h.store.SetUser(nil) },
		func() { h.store.SetToken(&tok) },
		func() { h.store.SetToken(nil) },
		func() { h.store.Login(User{"id": 1}, "x") },
		func() { h.store.Logout() },
		func() { h.store.UpdateUser(User{"n": rng.Int()}) },
	}

	for i := 0; i < 2000; i++ {
		ops[rng.Intn(len(ops))]()
		assertDerivedInvariant(t, h.store)
	}
}

func TestSubscriptionMaskFiltersFields(t *testing.T) {
	h := newStoreHarness(t, nil)

	var tokenChanges, userChanges int
	h.store.Subscribe(FieldToken, func(Change) { tokenChanges++ })
	h.store.Subscribe(FieldUser, func(Change) { userChanges++ })

	h.store.SetUser(User{"id": 1})
	h.store.UpdateUser(User{"name": "x"})
	tok := "abc"
	h.store.SetToken(&tok)
	h.store.SetToken(&tok)
	h.queue.Flush()

	if tokenChanges != 1 {
		t.Fatalf("expected 1 token change (same value is not a change), got %d", tokenChanges)
	}
	if userChanges != 2 {
		t.Fatalf("expected 2 user changes, got %d", userChanges)
	}
}

func TestCancelledSubscriptionSkipsScheduledNotifications(t *testing.T) {
	h := newStoreHarness(t, nil)

	var calls int
	cancel := h.store.Subscribe(FieldAll, func(Change) { calls++ })

	h.store.Login(User{"id": 1}, "tok")
	cancel()
	cancel()
	h.queue.Flush()

	if calls != 0 {
		t.Fatalf("expected no calls after cancel, got %d", calls)
	}
}

func TestChangesArriveInMutationOrder(t *testing.T) {
	h := newStoreHarness(t, nil)

	var seqs []uint64
	h.store.Subscribe(FieldAll, func(c Change) { seqs = append(seqs, c.Seq) })

	h.store.Login(User{"id": 1}, "a")
	h.store.UpdateUser(User{"x": 1})
	h.store.Logout()
	h.queue.Flush()

	if len(seqs) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("changes out of order: %v", seqs)
		}
	}
}

func TestDefaultLoopDeliversNotifications(t *testing.T) {
	s, err := New().WithStorage(storage.NewMemory()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer s.Close()

	got := make(chan Change, 1)
	s.Subscribe(FieldToken, func(c Change) { got <- c })

	s.Login(User{"id": 1}, "loop")

	select {
	case c := <-got:
		if c.Snapshot.Token != "loop" {
			t.Fatalf("expected token loop, got %q", c.Snapshot.Token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop notification")
	}
}

func TestExampleScenario(t *testing.T) {
	backend := storage.NewMemory()
	h := newStoreHarness(t, backend)

	h.store.Login(User{"id": 1, "name": "A"}, "tok1")
	if !h.store.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}

	h.store.UpdateUser(User{"name": "B"})
	if got := h.store.User(); !reflect.DeepEqual(got, User{"id": 1, "name": "B"}) {
		t.Fatalf("unexpected user %v", got)
	}
	if tok, _ := h.store.Token(); tok != "tok1" {
		t.Fatalf("expected tok1, got %q", tok)
	}

	h.store.Logout()
	snap := h.store.Snapshot()
	if snap.User != nil || snap.HasToken || snap.IsAuthenticated {
		t.Fatalf("expected empty session after logout, got %+v", snap)
	}

	h.flush(t)
	h.store.Close()

	restarted := newStoreHarness(t, backend)
	if _, ok := restarted.store.Token(); ok {
		t.Fatal("expected no token after restart following logout")
	}
}

func TestRestartRestoresTokenOnly(t *testing.T) {
	backend := storage.NewMemory()
	h := newStoreHarness(t, backend)

	h.store.Login(User{"id": 1}, "tok1")
	h.flush(t)
	h.store.Close()

	restarted := newStoreHarness(t, backend)
	snap := restarted.store.Snapshot()
	if !snap.HasToken || snap.Token != "tok1" {
		t.Fatalf("expected restored token tok1, got %+v", snap)
	}
	if snap.User != nil || snap.IsAuthenticated {
		t.Fatalf("user must not survive a restart, got %+v", snap)
	}
	waitEvent(t, restarted.sink, EventSessionRestored)
}

func TestPersistedSnapshotHoldsOnlyToken(t *testing.T) {
	backend := newFlakyStorage()
	h := newStoreHarness(t, backend)

	h.store.Login(User{"id": 1, "email": "a@example.com"}, "tok1")
	h.flush(t)

	backend.mu.Lock()
	data := string(backend.lastSave)
	backend.mu.Unlock()

	if data != `{"token":"tok1"}` {
		t.Fatalf("unexpected snapshot %s", data)
	}

	h.store.Logout()
	h.flush(t)

	backend.mu.Lock()
	data = string(backend.lastSave)
	backend.mu.Unlock()

	if data != `{"token":null}` {
		t.Fatalf("unexpected snapshot after logout %s", data)
	}
}

func TestWriteFailureIsReportedNotReturned(t *testing.T) {
	backend := newFlakyStorage()
	backend.setSaveErr(errors.New("quota exceeded"))
	h := newStoreHarness(t, backend)

	h.store.Login(User{"id": 1}, "tok1")
	h.flush(t)

	if tok, ok := h.store.Token(); !ok || tok != "tok1" {
		t.Fatal("in-memory change must survive a failed write")
	}

	ev := waitEvent(t, h.sink, EventPersistenceWriteFailure)
	if ev.Success {
		t.Fatal("expected failure event")
	}
	if !strings.Contains(ev.Error, "quota exceeded") {
		t.Fatalf("expected cause in event error, got %q", ev.Error)
	}
	if ev.Slot != DefaultSlot {
		t.Fatalf("expected slot %q, got %q", DefaultSlot, ev.Slot)
	}
	if got := h.store.Metrics().Value(MetricPersistWriteFailure); got != 1 {
		t.Fatalf("expected 1 write failure, got %d", got)
	}
}

func TestReadFailureStartsEmpty(t *testing.T) {
	backend := newFlakyStorage()
	if err := backend.inner.Save(context.Background(), DefaultSlot, []byte(`{"token":"tok"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	backend.loadErr = errors.New("storage disabled")

	h := newStoreHarness(t, backend)

	if _, ok := h.store.Token(); ok {
		t.Fatal("expected empty session after read failure")
	}
	ev := waitEvent(t, h.sink, EventPersistenceReadFailure)
	if !strings.Contains(ev.Error, "storage disabled") {
		t.Fatalf("unexpected event error %q", ev.Error)
	}
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	backend := storage.NewMemory()
	if err := backend.Save(context.Background(), DefaultSlot, []byte("not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := newStoreHarness(t, backend)

	if _, ok := h.store.Token(); ok {
		t.Fatal("expected empty session for corrupt snapshot")
	}
	waitEvent(t, h.sink, EventPersistenceReadFailure)
	if got := h.store.Metrics().Value(MetricPersistReadFailure); got != 1 {
		t.Fatalf("expected read failure metric 1, got %d", got)
	}
}

func TestSlotConvergesOnLatestToken(t *testing.T) {
	backend := storage.NewMemory()
	h := newStoreHarness(t, backend)

	for i := 0; i < 100; i++ {
		tok := "tok-" + string(rune('a'+i%26))
		h.store.SetToken(&tok)
	}
	final := "final"
	h.store.SetToken(&final)
	h.flush(t)

	data, err := backend.Load(context.Background(), DefaultSlot)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"token":"final"}` {
		t.Fatalf("expected final token persisted, got %s", data)
	}
}

func TestMutationsAfterCloseStayInMemory(t *testing.T) {
	backend := storage.NewMemory()
	h := newStoreHarness(t, backend)
	h.store.Close()

	h.store.Login(User{"id": 1}, "late")

	if tok, _ := h.store.Token(); tok != "late" {
		t.Fatalf("expected in-memory token late, got %q", tok)
	}
	if _, err := backend.Load(context.Background(), DefaultSlot); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected nothing persisted after close, got %v", err)
	}
}

func TestBuildRequiresStorage(t *testing.T) {
	if _, err := New().Build(context.Background()); !errors.Is(err, ErrStorageRequired) {
		t.Fatalf("expected ErrStorageRequired, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithStorage(storage.NewMemory()).WithScheduler(NewQueue())
	s, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer s.Close()

	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestStoreContextRoundTrip(t *testing.T) {
	h := newStoreHarness(t, nil)

	ctx := WithStore(context.Background(), h.store)
	got, ok := StoreFromContext(ctx)
	if !ok || got != h.store {
		t.Fatal("expected store from context")
	}

	if _, ok := StoreFromContext(context.Background()); ok {
		t.Fatal("expected no store on bare context")
	}
}
