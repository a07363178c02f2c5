package authsession

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/trackwise/authsession/apierror"
	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/gateway"
	"github.com/trackwise/authsession/internal/fakeapi"
)

var testKey = bytes.Repeat([]byte{7}, 32)

func testSealer(t *testing.T) credential.Sealer {
	t.Helper()
	s, err := credential.NewSealer(testKey)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	return s
}

type fakeGateway struct {
	mu          sync.Mutex
	token       string
	registerErr error
	loginErr    error
	loginDelay  time.Duration
	registers   int
	logins      int
}

func (g *fakeGateway) Register(_ context.Context, req gateway.RegisterRequest) (*gateway.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registers++
	if g.registerErr != nil {
		return nil, g.registerErr
	}
	return &gateway.Identity{ID: 1, Email: req.Email, Username: req.Username, IsActive: true}, nil
}

func (g *fakeGateway) Login(ctx context.Context, _, _ string) (*gateway.Token, error) {
	g.mu.Lock()
	g.logins++
	token, err, delay := g.token, g.loginErr, g.loginDelay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, apierror.Classify(ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return &gateway.Token{AccessToken: token, TokenType: "bearer"}, nil
}

func (g *fakeGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registers, g.logins
}

// newStubManager builds a Manager over an in-memory backend and gw.
func newStubManager(t *testing.T, gw IdentityGateway, backend credential.Backend) *Manager {
	t.Helper()
	if backend == nil {
		backend = credential.NewMemoryBackend()
	}
	m, err := New().
		WithBaseURL("http://api.test/api/v1").
		WithBackend(backend, testSealer(t)).
		WithGateway(gw).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type fakeEnv struct {
	fake    *fakeapi.Server
	server  *httptest.Server
	backend *credential.MemoryBackend
	manager *Manager
}

// newFakeEnv builds a Manager against an in-process identity service seeded
// with john@example.com / password123.
func newFakeEnv(t *testing.T, configure func(*Builder)) *fakeEnv {
	t.Helper()
	fake, err := fakeapi.New(nil)
	if err != nil {
		t.Fatalf("fake api: %v", err)
	}
	if err := fake.Seed("john@example.com", "john_doe", "password123"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := credential.NewMemoryBackend()
	b := New().
		WithBaseURL(srv.URL).
		WithTransport(srv.Client().Transport).
		WithBackend(backend, testSealer(t))
	if configure != nil {
		configure(b)
	}
	m, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return &fakeEnv{fake: fake, server: srv, backend: backend, manager: m}
}

type failingBackend struct {
	*credential.MemoryBackend
	failSet    bool
	failDelete bool
	failGet    bool
}

var errBackendDown = errors.New("backend down")

func (f *failingBackend) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errBackendDown
	}
	return f.MemoryBackend.Get(ctx, name)
}

func (f *failingBackend) GetEntries(ctx context.Context, names ...string) (map[string][]byte, error) {
	if f.failGet {
		return nil, errBackendDown
	}
	return f.MemoryBackend.GetEntries(ctx, names...)
}

func (f *failingBackend) SetEntries(ctx context.Context, entries []credential.Entry) error {
	if f.failSet {
		return errBackendDown
	}
	return f.MemoryBackend.SetEntries(ctx, entries)
}

func (f *failingBackend) Delete(ctx context.Context, names ...string) error {
	if f.failDelete {
		return errBackendDown
	}
	return f.MemoryBackend.Delete(ctx, names...)
}
