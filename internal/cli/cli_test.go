package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/trackwise/authsession/internal/fakeapi"
	"github.com/trackwise/authsession/internal/output"
)

type cliEnv struct {
	t   *testing.T
	dir string
	url string
	api *fakeapi.Server
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("NO_COLOR", "1")
	t.Setenv(PasswordEnv, "")
	t.Setenv("TRACKWISE_STORE_PATH", filepath.Join(dir, "session.db"))
	t.Setenv("TRACKWISE_STORE_KEY_FILE", filepath.Join(dir, "session.key"))

	api, err := fakeapi.New(nil)
	if err != nil {
		t.Fatalf("fake api: %v", err)
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return &cliEnv{t: t, dir: dir, url: srv.URL, api: api}
}

func (e *cliEnv) run(args ...string) (int, string, string) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), append([]string{"--api-url", e.url}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	code, out, errOut := e.run(args...)
	if code != output.ExitSuccess {
		e.t.Fatalf("%v: exit %d\nstdout: %s\nstderr: %s", args, code, out, errOut)
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	if out := env.mustRun("status"); !strings.Contains(out, "[anonymous]") {
		t.Fatalf("expected anonymous status, got:\n%s", out)
	}

	out := env.mustRun("register", "--email", "john@example.com", "--username", "john_doe", "--full-name", "John Doe", "--password", "Secret123!")
	if !strings.Contains(out, "registered and signed in as john@example.com") {
		t.Fatalf("unexpected register output:\n%s", out)
	}

	out = env.mustRun("status")
	for _, want := range []string{"[authenticated]", "john@example.com", "Expires:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status:\n%s", want, out)
		}
	}

	out = env.mustRun("whoami")
	if !strings.Contains(out, "john_doe") || !strings.Contains(out, "John Doe") {
		t.Fatalf("unexpected whoami output:\n%s", out)
	}

	out = env.mustRun("routes", "add", "--name", "Commute", "--origin", "Home", "--destination", "Office", "--favorite")
	if !strings.Contains(out, "saved route 1 (Commute)") {
		t.Fatalf("unexpected add output:\n%s", out)
	}
	env.mustRun("routes", "add", "--name", "Gym", "--origin", "Office", "--destination", "Gym")

	out = env.mustRun("routes", "list")
	if !strings.Contains(out, "Commute") || !strings.Contains(out, "Gym") || !strings.Contains(out, "2 of 2 routes, 1 favorites") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
	out = env.mustRun("routes", "list", "--favorites")
	if strings.Contains(out, "Gym") {
		t.Fatalf("favorites filter ignored:\n%s", out)
	}

	env.mustRun("routes", "favorite", "2")
	env.mustRun("routes", "favorite", "1", "--unset")
	env.mustRun("routes", "rm", "1")
	if code, _, errOut := env.run("routes", "rm", "1"); code != output.ExitGeneral || !strings.Contains(errOut, "could not be found") {
		t.Fatalf("expected not found on second delete, exit %d stderr %q", code, errOut)
	}

	env.mustRun("logout")
	env.mustRun("logout")
	if out := env.mustRun("status"); !strings.Contains(out, "[anonymous]") {
		t.Fatalf("expected anonymous after logout, got:\n%s", out)
	}
	if code, _, errOut := env.run("whoami"); code != output.ExitAuthError || !strings.Contains(errOut, "not signed in") {
		t.Fatalf("expected auth exit, got %d %q", code, errOut)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.api.Seed("john@example.com", "john_doe", "Secret123!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	code, _, errOut := env.run("login", "john@example.com", "--password", "wrong-password")
	if code != output.ExitAuthError {
		t.Fatalf("expected exit %d, got %d (%s)", output.ExitAuthError, code, errOut)
	}
	if !strings.Contains(errOut, "[ERROR]") || !strings.Contains(errOut, "Incorrect email or password") {
		t.Fatalf("unexpected stderr %q", errOut)
	}

	if code, _, _ := env.run("login", "john@example.com"); code != output.ExitUsageError {
		t.Fatalf("missing password must be a usage error, got %d", code)
	}

	t.Setenv(PasswordEnv, "Secret123!")
	if out := env.mustRun("login", "--email", "john@example.com"); !strings.Contains(out, "signed in as john@example.com") {
		t.Fatalf("unexpected login output:\n%s", out)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.api.Seed("john@example.com", "john_doe", "Secret123!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	code, _, errOut := env.run("register", "--email", "john@example.com", "--username", "johnny", "--password", "Secret123!")
	if code != output.ExitGeneral || !strings.Contains(errOut, "Email already registered") {
		t.Fatalf("expected conflict, got %d %q", code, errOut)
	}
	if env.api.Calls("POST /auth/login") != 0 {
		t.Fatal("a rejected registration must not log in")
	}

	code, _, errOut = env.run("register", "--email", "not-an-email", "--username", "ab", "--password", "short")
	if code != output.ExitUsageError || !strings.Contains(errOut, "email:") {
		t.Fatalf("expected validation error, got %d %q", code, errOut)
	}

	out := env.mustRun("register", "--email", "jane@example.com", "--username", "jane_doe", "--password", "Secret123!", "--no-login")
	if !strings.Contains(out, "registered jane@example.com") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if out := env.mustRun("status"); !strings.Contains(out, "[anonymous]") {
		t.Fatalf("--no-login must leave the session anonymous:\n%s", out)
	}
}

func TestNetworkUnavailable(t *testing.T) {
	env := newCLIEnv(t)
	srv := httptest.NewServer(env.api)
	env.url = srv.URL
	srv.Close()

	code, _, errOut := env.run("login", "john@example.com", "--password", "Secret123!")
	if code != output.ExitNetwork || !strings.Contains(errOut, "Unable to reach the server") {
		t.Fatalf("expected network exit, got %d %q", code, errOut)
	}
}

func TestInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("TRACKWISE_STORE_BACKEND", "etcd")

	code, _, errOut := env.run("status")
	if code != output.ExitConfigError || !strings.Contains(errOut, "configuration is invalid") {
		t.Fatalf("expected config exit, got %d %q", code, errOut)
	}
}

func TestPassphraseSealedSession(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.api.Seed("john@example.com", "john_doe", "Secret123!"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Setenv("TRACKWISE_STORE_PASSPHRASE", "correct horse battery")

	env.mustRun("login", "john@example.com", "--password", "Secret123!")
	if out := env.mustRun("status"); !strings.Contains(out, "[authenticated]") {
		t.Fatalf("expected restored session:\n%s", out)
	}

	t.Setenv("TRACKWISE_STORE_PASSPHRASE", "wrong passphrase")
	if out := env.mustRun("status"); !strings.Contains(out, "[anonymous]") {
		t.Fatalf("a different passphrase must not open the session:\n%s", out)
	}
}

func TestRedisBackendAndMetrics(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.api.Seed("john@example.com", "john_doe", "Secret123!"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mr := miniredis.RunT(t)
	t.Setenv("TRACKWISE_STORE_BACKEND", "redis")
	t.Setenv("TRACKWISE_STORE_REDIS_ADDR", mr.Addr())
	t.Setenv("TRACKWISE_STORE_NAMESPACE", "work")

	env.mustRun("login", "john@example.com", "--password", "Secret123!")
	if !mr.Exists("trackwise:work:access_token") {
		t.Fatalf("expected namespaced redis keys, got %v", mr.Keys())
	}

	out := env.mustRun("metrics")
	if !strings.Contains(out, "authsession_cache_warm_hit_total 1") {
		t.Fatalf("expected a warm hit:\n%s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	env := newCLIEnv(t)
	cases := [][]string{
		{"register", "--email", "john@example.com"},
		{"routes", "rm", "abc"},
		{"routes", "add", "--name", "x"},
	}
	for _, args := range cases {
		if code, _, _ := env.run(args...); code != output.ExitUsageError {
			t.Fatalf("%v: expected usage exit, got %d", args, code)
		}
	}
	if out := env.mustRun("version"); !strings.Contains(out, "trackwise dev") {
		t.Fatalf("unexpected version output %q", out)
	}
}
