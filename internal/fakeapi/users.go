package fakeapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

var (
	usernamePattern = regexp.MustCompile(`^\w*[A-Za-z]\w*$`)
	specialPattern  = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

type user struct {
	ID        int
	Email     string
	Username  string
	FullName  *string
	Active    bool
	Superuser bool
	Salt      []byte
	Hash      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type userResponse struct {
	ID          int       `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *user) response() userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		IsActive:    u.Active,
		IsSuperuser: u.Superuser,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type registerBody struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

// Seed registers an active account directly, bypassing validation.
func (s *Server) Seed(email, username, password string) error {
	_, status, detail := s.createUser(registerBody{Email: email, Username: username, Password: password})
	if status != http.StatusCreated {
		return &seedError{status: status, detail: detail}
	}
	return nil
}

// Deactivate marks the account inactive; login then answers 403.
func (s *Server) Deactivate(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if ok {
		u.Active = false
		u.UpdatedAt = time.Now().UTC()
	}
	return ok
}

type seedError struct {
	status int
	detail string
}

func (e *seedError) Error() string {
	return "fakeapi: seed failed: " + http.StatusText(e.status) + ": " + e.detail
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidation(w, []fieldError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	if fields := validateRegistration(body); len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	resp, status, detail := s.createUser(body)
	if status != http.StatusCreated {
		writeError(w, status, detail, "ResourceAlreadyExistsError")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) createUser(body registerBody) (userResponse, int, string) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return userResponse{}, http.StatusInternalServerError, "entropy failure"
	}
	hash := hashPassword(body.Password, salt)
	email := strings.ToLower(strings.TrimSpace(body.Email))
	username := strings.ToLower(body.Username)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return userResponse{}, http.StatusConflict, "Email already registered"
	}
	if _, exists := s.usernames[username]; exists {
		return userResponse{}, http.StatusConflict, "Username already taken"
	}

	s.nextUserID++
	now := time.Now().UTC()
	u := &user{
		ID:        s.nextUserID,
		Email:     email,
		Username:  body.Username,
		FullName:  body.FullName,
		Active:    true,
		Salt:      salt,
		Hash:      hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[email] = u
	s.usernames[username] = email
	return u.response(), http.StatusCreated, ""
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeValidation(w, []fieldError{{Loc: []any{"body"}, Msg: "Invalid form body", Type: "value_error"}})
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostForm.Get("username")))
	password := r.PostForm.Get("password")

	var missing []fieldError
	if email == "" {
		missing = append(missing, fieldError{Loc: []any{"body", "username"}, Msg: "Field required", Type: "missing"})
	}
	if password == "" {
		missing = append(missing, fieldError{Loc: []any{"body", "password"}, Msg: "Field required", Type: "missing"})
	}
	if len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	s.mu.Lock()
	u, ok := s.users[email]
	var salt, hash []byte
	var active bool
	if ok {
		salt, hash, active = u.Salt, u.Hash, u.Active
	}
	s.mu.Unlock()

	if !ok || subtle.ConstantTimeCompare(hashPassword(password, salt), hash) != 1 {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Incorrect email or password", "AuthenticationError")
		return
	}
	if !active {
		writeError(w, http.StatusForbidden, "User account is inactive", "InactiveUserError")
		return
	}

	token, err := s.signer.Issue(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed", "Exception")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, u *user) {
	writeJSON(w, http.StatusOK, u.response())
}

func validateRegistration(body registerBody) []fieldError {
	var out []fieldError
	add := func(field, msg, typ string) {
		out = append(out, fieldError{Loc: []any{"body", field}, Msg: msg, Type: typ})
	}

	if addr, err := mail.ParseAddress(body.Email); err != nil || addr.Address != strings.TrimSpace(body.Email) {
		add("email", "value is not a valid email address", "value_error")
	}
	switch n := len(body.Username); {
	case n < 3:
		add("username", "String should have at least 3 characters", "string_too_short")
	case n > 50:
		add("username", "String should have at most 50 characters", "string_too_long")
	case !usernamePattern.MatchString(body.Username):
		add("username", "Value error, Username must contain at least one letter, and only alphanumeric characters or underscores.", "value_error")
	}
	if body.FullName != nil && len(*body.FullName) > 255 {
		add("full_name", "String should have at most 255 characters", "string_too_long")
	}

	p := body.Password
	switch {
	case len(p) < 8:
		add("password", "String should have at least 8 characters", "string_too_short")
	case len(p) > 100:
		add("password", "String should have at most 100 characters", "string_too_long")
	case !strings.ContainsAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"):
		add("password", "Value error, Password must contain at least one uppercase letter.", "value_error")
	case !strings.ContainsAny(p, "abcdefghijklmnopqrstuvwxyz"):
		add("password", "Value error, Password must contain at least one lowercase letter.", "value_error")
	case !strings.ContainsAny(p, "0123456789"):
		add("password", "Value error, Password must contain at least one number.", "value_error")
	case !specialPattern.MatchString(p):
		add("password", "Value error, Password must contain at least one special character.", "value_error")
	}
	return out
}

func hashPassword(password string, salt []byte) []byte {
	if len(salt) == 0 {
		salt = make([]byte, 16)
	}
	return argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
}
