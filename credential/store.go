package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	// EntryAccessToken names the persisted session token.
	EntryAccessToken = "access_token"
	// EntryUserEmail names the persisted identity hint.
	EntryUserEmail = "user_email"

	recordFlight = "record"
)

var (
	// ErrEmptyToken is returned by Save for a blank token.
	ErrEmptyToken = errors.New("credential token must not be empty")
	// ErrNilBackend is returned by NewStore without a backend.
	ErrNilBackend = errors.New("credential backend required")
	// ErrNilSealer is returned by NewStore without a sealer.
	ErrNilSealer = errors.New("credential sealer required")
)

// Record is the persisted credential pair. It is written and erased whole.
type Record struct {
	Token string
	Email string
}

// Entry is one named value in a backend write.
type Entry struct {
	Name  string
	Value []byte
}

// Backend is a durable key-value namespace. SetEntries must apply all entries
// or none, and GetEntries must observe them the same way: one consistent read
// that omits missing names. Delete must succeed for entries that do not exist.
type Backend interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
	GetEntries(ctx context.Context, names ...string) (map[string][]byte, error)
	SetEntries(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, names ...string) error
}

// Store couples a sealed durable backend with the process-local Cache.
//
// Mutations (Save, Clear, Warm) are serialized so the cache can never be left
// holding a token that a concurrent Clear already removed from the backend.
// ReadCached takes no lock.
type Store struct {
	backend Backend
	sealer  Sealer
	logger  *slog.Logger

	cache Cache
	mu    sync.Mutex
	reads singleflight.Group
}

// NewStore builds a Store. The cache starts empty; call Warm to load a record
// persisted by a previous process.
func NewStore(backend Backend, sealer Sealer, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if sealer == nil {
		return nil, ErrNilSealer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, sealer: sealer, logger: logger}, nil
}

// Save persists a new record, replacing both entries, then updates the cache.
// When the durable write fails the cache is left as it was.
func (s *Store) Save(ctx context.Context, token, email string) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}

	sealedToken, err := s.sealer.Seal(EntryAccessToken, []byte(token))
	if err != nil {
		return fmt.Errorf("seal %s: %w", EntryAccessToken, err)
	}
	sealedEmail, err := s.sealer.Seal(EntryUserEmail, []byte(email))
	if err != nil {
		return fmt.Errorf("seal %s: %w", EntryUserEmail, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.SetEntries(ctx, []Entry{
		{Name: EntryAccessToken, Value: sealedToken},
		{Name: EntryUserEmail, Value: sealedEmail},
	}); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	s.reads.Forget(recordFlight)
	s.cache.store(token)

	s.logger.Debug("credential saved", "token_length", len(token))
	return nil
}

// Read returns the durable token. Concurrent callers share one backend read.
func (s *Store) Read(ctx context.Context) (string, bool, error) {
	rec, ok, err := s.Record(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Token, true, nil
}

// Record returns the durable credential pair. Callers that arrive while a
// read is in flight share its result, unless a Save or Clear has completed
// since it started. A caller whose ctx ends stops waiting without cancelling
// the shared read.
func (s *Store) Record(ctx context.Context) (Record, bool, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(recordFlight, func() (any, error) {
		return s.readRecord(flightCtx)
	})

	select {
	case <-ctx.Done():
		return Record{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Record{}, false, res.Err
		}
		rec := res.Val.(*Record)
		if rec == nil {
			return Record{}, false, nil
		}
		return *rec, true, nil
	}
}

func (s *Store) readRecord(ctx context.Context) (*Record, error) {
	raw, err := s.backend.GetEntries(ctx, EntryAccessToken, EntryUserEmail)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	rawToken, ok := raw[EntryAccessToken]
	if !ok {
		return nil, nil
	}
	token, err := s.sealer.Open(EntryAccessToken, rawToken)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", EntryAccessToken, err)
	}

	rec := &Record{Token: string(token)}
	if rawEmail, ok := raw[EntryUserEmail]; ok {
		email, err := s.sealer.Open(EntryUserEmail, rawEmail)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", EntryUserEmail, err)
		}
		rec.Email = string(email)
	}
	return rec, nil
}

// ReadCached returns the token last written by Save (or loaded by Warm) in
// this process. It never touches the backend.
func (s *Store) ReadCached() (string, bool) {
	return s.cache.Load()
}

// Clear erases both entries and empties the cache. It is idempotent, and the
// cache is emptied even when the backend delete fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.reset()
	err := s.backend.Delete(ctx, EntryAccessToken, EntryUserEmail)
	s.reads.Forget(recordFlight)
	if err != nil {
		return fmt.Errorf("erase credential: %w", err)
	}
	s.logger.Debug("credential cleared")
	return nil
}

// IsAuthenticated reports whether a durable token exists.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	_, ok, err := s.Read(ctx)
	return ok, err
}

// Warm loads the durable token into the cache so the first request after a
// cold start is authenticated.
func (s *Store) Warm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		s.cache.reset()
		return nil
	}
	s.cache.store(rec.Token)
	s.logger.Debug("credential cache warmed", "token_length", len(rec.Token))
	return nil
}

// Close releases the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
