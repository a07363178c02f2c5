package fakeapi

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trackwise/authsession/internal/rate"
	"github.com/trackwise/authsession/jwt"
	"github.com/trackwise/authsession/middleware"
)

// Server is an http.Handler serving the identity and saved-routes API.
type Server struct {
	signer *jwt.Signer
	mux    *http.ServeMux

	mu          sync.Mutex
	users       map[string]*user
	usernames   map[string]string
	nextUserID  int
	routes      map[int]*savedRoute
	nextRouteID int
	failNext    []int

	delay   atomic.Int64
	limiter atomic.Pointer[rate.Limiter]
	counter sync.Map
}

// New builds a Server. A nil signer gets a random HS256 key with a
// 30 minute token lifetime.
func New(signer *jwt.Signer) (*Server, error) {
	if signer == nil {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		s, err := jwt.NewSigner(jwt.SignerConfig{
			AccessTTL:  30 * time.Minute,
			PrivateKey: secret,
			Issuer:     "trackwise-fake",
		})
		if err != nil {
			return nil, err
		}
		signer = s
	}

	s := &Server{
		signer:    signer,
		users:     make(map[string]*user),
		usernames: make(map[string]string),
		routes:    make(map[int]*savedRoute),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /users/me", s.requireUser(s.handleMe))
	mux.HandleFunc("GET /saved-routes/{$}", s.requireUser(s.handleListRoutes))
	mux.HandleFunc("POST /saved-routes/{$}", s.requireUser(s.handleCreateRoute))
	mux.HandleFunc("GET /saved-routes/{id}", s.requireUser(s.handleGetRoute))
	mux.HandleFunc("PUT /saved-routes/{id}", s.requireUser(s.handleUpdateRoute))
	mux.HandleFunc("DELETE /saved-routes/{id}", s.requireUser(s.handleDeleteRoute))
	s.mux = mux
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.bump(r.Method + " " + r.URL.Path)

	if d := time.Duration(s.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if l := s.limiter.Load(); l != nil {
		err := l.Allow(r.Context(), clientKey(r))
		if errors.Is(err, rate.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": fmt.Sprintf("Rate limit exceeded: %d per %s", l.Limit(), l.Window()),
			})
			return
		}
	}
	if status, ok := s.popFailure(); ok {
		writeError(w, status, http.StatusText(status), "InjectedFailure")
		return
	}
	s.mux.ServeHTTP(w, r)
}

// SetDelay makes every subsequent request wait d before being handled.
func (s *Server) SetDelay(d time.Duration) {
	s.delay.Store(int64(d))
}

// SetRateLimit throttles requests per client address. Counter failures
// let the request through. A nil limiter disables throttling.
func (s *Server) SetRateLimit(l *rate.Limiter) {
	s.limiter.Store(l)
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// FailNext queues statuses returned, one per request, ahead of routing.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	s.failNext = append(s.failNext, statuses...)
	s.mu.Unlock()
}

// Calls reports how many requests hit "METHOD /path".
func (s *Server) Calls(route string) int64 {
	v, ok := s.counter.Load(route)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (s *Server) bump(route string) {
	v, _ := s.counter.LoadOrStore(route, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (s *Server) popFailure() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failNext) == 0 {
		return 0, false
	}
	status := s.failNext[0]
	s.failNext = s.failNext[1:]
	return status, true
}

type authedHandler func(http.ResponseWriter, *http.Request, *user)

func (s *Server) requireUser(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Not authenticated", "")
			return
		}
		claims, err := s.signer.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Could not validate credentials", "")
			return
		}

		s.mu.Lock()
		u, ok := s.users[claims.Subject]
		var snapshot user
		if ok {
			snapshot = *u
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials", "")
			return
		}
		if !snapshot.Active {
			writeError(w, http.StatusForbidden, "Inactive user", "")
			return
		}
		next(w, r, &snapshot)
	}
}

type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "encode failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, detail, errorType string) {
	body := map[string]any{"detail": detail}
	if errorType != "" {
		body["error_type"] = errorType
	}
	writeJSON(w, status, body)
}

func writeValidation(w http.ResponseWriter, fields []fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fields})
}
