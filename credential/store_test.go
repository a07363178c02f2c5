package credential

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type failingBackend struct {
	*MemoryBackend
	failSet    bool
	failDelete bool
}

func (f *failingBackend) SetEntries(ctx context.Context, entries []Entry) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.MemoryBackend.SetEntries(ctx, entries)
}

func (f *failingBackend) Delete(ctx context.Context, names ...string) error {
	if f.failDelete {
		return errors.New("disk gone")
	}
	return f.MemoryBackend.Delete(ctx, names...)
}

// gatedBackend parks the first GetEntries call after arm until release is
// closed. Later calls go straight through.
type gatedBackend struct {
	*MemoryBackend
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		MemoryBackend: NewMemoryBackend(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (g *gatedBackend) GetEntries(ctx context.Context, names ...string) (map[string][]byte, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.MemoryBackend.GetEntries(ctx, names...)
}

func testSealer(t *testing.T) *AEADSealer {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	store, err := NewStore(backend, testSealer(t), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestSaveReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())

	if err := store.Save(ctx, "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	token, ok, err := store.Read(ctx)
	if err != nil || !ok || token != "abc123" {
		t.Fatalf("read: got %q ok=%v err=%v", token, ok, err)
	}
	cached, ok := store.ReadCached()
	if !ok || cached != "abc123" {
		t.Fatalf("read cached: got %q ok=%v", cached, ok)
	}
	rec, ok, err := store.Record(ctx)
	if err != nil || !ok || rec.Email != "john@example.com" {
		t.Fatalf("record: got %+v ok=%v err=%v", rec, ok, err)
	}
	authed, err := store.IsAuthenticated(ctx)
	if err != nil || !authed {
		t.Fatalf("expected authenticated, got %v err=%v", authed, err)
	}
}

func TestSaveReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())

	if err := store.Save(ctx, "first", "a@example.com"); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(ctx, "second", ""); err != nil {
		t.Fatalf("save second: %v", err)
	}

	rec, ok, err := store.Record(ctx)
	if err != nil || !ok {
		t.Fatalf("record: ok=%v err=%v", ok, err)
	}
	if rec.Token != "second" || rec.Email != "" {
		t.Fatalf("expected full replacement, got %+v", rec)
	}
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	store := newTestStore(t, NewMemoryBackend())
	if err := store.Save(context.Background(), "  ", "a@example.com"); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestValuesAreSealedAtRest(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := newTestStore(t, backend)

	if err := store.Save(ctx, "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, ok, _ := backend.Get(ctx, EntryAccessToken)
	if !ok {
		t.Fatal("expected access_token entry")
	}
	if string(raw) == "abc123" || len(raw) <= len("abc123") {
		t.Fatalf("token stored without sealing: %q", raw)
	}
	if _, ok, _ := backend.Get(ctx, EntryUserEmail); !ok {
		t.Fatal("expected user_email entry")
	}
}

func TestCacheIsLazyUntilWarm(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	sealer := testSealer(t)

	first, _ := NewStore(backend, sealer, nil)
	if err := first.Save(ctx, "persisted", "a@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A new process sees the durable record but an empty cache.
	second, _ := NewStore(backend, sealer, nil)
	if _, ok := second.ReadCached(); ok {
		t.Fatal("cache must start empty")
	}
	if token, ok, _ := second.Read(ctx); !ok || token != "persisted" {
		t.Fatalf("durable read: got %q ok=%v", token, ok)
	}

	if err := second.Warm(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if token, ok := second.ReadCached(); !ok || token != "persisted" {
		t.Fatalf("cache after warm: got %q ok=%v", token, ok)
	}
}

func TestWarmOnEmptyStorageResetsCache(t *testing.T) {
	store := newTestStore(t, NewMemoryBackend())
	if err := store.Warm(context.Background()); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if _, ok := store.ReadCached(); ok {
		t.Fatal("expected empty cache")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := newTestStore(t, backend)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear on empty storage: %v", err)
	}
	if err := store.Save(ctx, "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}

	if _, ok := store.ReadCached(); ok {
		t.Fatal("cache must be empty after clear")
	}
	if authed, _ := store.IsAuthenticated(ctx); authed {
		t.Fatal("storage must be empty after clear")
	}
	if backend.Len() != 0 {
		t.Fatalf("expected both entries erased, %d left", backend.Len())
	}
}

func TestFailedSaveLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	store := newTestStore(t, backend)

	if err := store.Save(ctx, "old", "a@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}
	backend.failSet = true
	if err := store.Save(ctx, "new", "a@example.com"); err == nil {
		t.Fatal("expected save failure")
	}
	if token, _ := store.ReadCached(); token != "old" {
		t.Fatalf("cache must keep the last durable value, got %q", token)
	}
}

func TestFailedClearStillEmptiesCache(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	store := newTestStore(t, backend)

	if err := store.Save(ctx, "abc123", ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	backend.failDelete = true
	if err := store.Clear(ctx); err == nil {
		t.Fatal("expected clear failure to be reported")
	}
	if _, ok := store.ReadCached(); ok {
		t.Fatal("cache must be empty even when the backend delete fails")
	}
}

func TestConcurrentCachedReadsDuringSaveAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if token, ok := store.ReadCached(); ok && token != "t-1" && token != "t-2" {
					t.Errorf("torn read %q", token)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		tok := "t-1"
		if i%2 == 1 {
			tok = "t-2"
		}
		if err := store.Save(ctx, tok, ""); err != nil {
			t.Fatalf("save: %v", err)
		}
		if i%5 == 0 {
			_ = store.Clear(ctx)
		}
	}
	wg.Wait()
}

func TestNewStoreRequiresCollaborators(t *testing.T) {
	if _, err := NewStore(nil, testSealer(t), nil); !errors.Is(err, ErrNilBackend) {
		t.Fatalf("expected ErrNilBackend, got %v", err)
	}
	if _, err := NewStore(NewMemoryBackend(), nil, nil); !errors.Is(err, ErrNilSealer) {
		t.Fatalf("expected ErrNilSealer, got %v", err)
	}
}

func TestReadAfterSaveSeesNewRecordWhileOlderReadInFlight(t *testing.T) {
	ctx := context.Background()
	backend := newGatedBackend()
	store := newTestStore(t, backend)

	backend.armed.Store(true)
	slow := make(chan error, 1)
	go func() {
		_, _, err := store.Read(ctx)
		slow <- err
	}()
	<-backend.entered

	if err := store.Save(ctx, "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	type result struct {
		token string
		ok    bool
		err   error
	}
	fresh := make(chan result, 1)
	go func() {
		token, ok, err := store.Read(ctx)
		fresh <- result{token, ok, err}
	}()

	select {
	case got := <-fresh:
		if got.err != nil || !got.ok || got.token != "abc123" {
			t.Fatalf("read after save: token=%q ok=%v err=%v", got.token, got.ok, got.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read after save joined the read that started before it")
	}
	if ok, err := store.IsAuthenticated(ctx); err != nil || !ok {
		t.Fatalf("expected authenticated after save: ok=%v err=%v", ok, err)
	}

	close(backend.release)
	if err := <-slow; err != nil {
		t.Fatalf("slow read: %v", err)
	}
}

func TestReadAfterClearSeesAbsentWhileOlderReadInFlight(t *testing.T) {
	ctx := context.Background()
	backend := newGatedBackend()
	store := newTestStore(t, backend)
	if err := store.Save(ctx, "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	backend.armed.Store(true)
	go func() { _, _, _ = store.Read(ctx) }()
	<-backend.entered
	defer close(backend.release)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	done := make(chan bool, 1)
	go func() {
		_, ok, _ := store.Read(ctx)
		done <- ok
	}()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("read after clear must report absent")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read after clear joined the read that started before it")
	}
}

func TestCancelledReaderDoesNotFailSharedRead(t *testing.T) {
	backend := newGatedBackend()
	store := newTestStore(t, backend)
	if err := store.Save(context.Background(), "abc123", "john@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	backend.armed.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, _, err := store.Read(ctx)
		first <- err
	}()
	<-backend.entered

	second := make(chan string, 1)
	go func() {
		token, _, err := store.Read(context.Background())
		if err != nil {
			token = "error: " + err.Error()
		}
		second <- token
	}()

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled reader kept waiting on the shared read")
	}

	close(backend.release)
	if got := <-second; got != "abc123" {
		t.Fatalf("other reader got %q, want abc123", got)
	}
}

func TestRecordIsNeverTornUnderConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())
	pairs := map[string]string{
		"old-token": "old@example.com",
		"new-token": "new@example.com",
	}
	if err := store.Save(ctx, "old-token", "old@example.com"); err != nil {
		t.Fatalf("save: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rec, ok, err := store.Record(ctx)
				if err != nil || !ok {
					t.Errorf("record: ok=%v err=%v", ok, err)
					return
				}
				if pairs[rec.Token] != rec.Email {
					t.Errorf("torn record %+v", rec)
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		tok := "old-token"
		if i%2 == 0 {
			tok = "new-token"
		}
		if err := store.Save(ctx, tok, pairs[tok]); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
