// Command authsession-loadtest drives a Manager against the in-process fake
// API while sessions are toggled underneath concurrent requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authsession "github.com/trackwise/authsession"
	"github.com/trackwise/authsession/apierror"
	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/internal/fakeapi"
	"github.com/trackwise/authsession/metrics/export/prometheus"
)

const (
	loadEmail    = "load@example.com"
	loadPassword = "Secret123!"
)

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		toggleEvery = flag.Duration("toggle-every", 5*time.Millisecond, "interval between logout/login flips during the request phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		namespace   = flag.String("namespace", "loadtest", "credential key namespace")
		showMetrics = flag.Bool("metrics", false, "print session metrics after the run")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *toggleEvery <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and toggle-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	api, err := fakeapi.New(nil)
	if err != nil {
		fatal("fake api", err)
	}
	if err := api.Seed(loadEmail, "load_user", loadPassword); err != nil {
		fatal("seed", err)
	}
	srv := httptest.NewServer(api)
	defer srv.Close()

	mgr, err := buildManager(ctx, client, srv.URL, *namespace)
	if err != nil {
		fatal("build manager", err)
	}
	defer mgr.Close()

	if err := mgr.Login(ctx, loadEmail, loadPassword); err != nil {
		fatal("initial login", err)
	}

	cacheStats := runCachePhase(mgr, *ops, *concurrency)
	requestStats, counts := runRequestPhase(ctx, mgr, *ops, *concurrency, *toggleEvery)

	fmt.Println("---- results ----")
	printStats("cache-read", cacheStats)
	printStats("request", requestStats)
	fmt.Printf("request outcomes: ok=%d anonymous=%d rejected_token=%d other=%d flips=%d\n",
		counts.ok.Load(), counts.anonymous.Load(), counts.rejected.Load(), counts.other.Load(), counts.flips.Load())

	if *showMetrics {
		fmt.Print(prometheus.NewExporter(mgr).Render())
	}
	if counts.rejected.Load() > 0 {
		fmt.Fprintln(os.Stderr, "requests carried a token the server could not validate")
		os.Exit(1)
	}
}

func buildManager(ctx context.Context, client redis.UniversalClient, baseURL, namespace string) (*authsession.Manager, error) {
	backend, err := credential.NewRedisBackend(client, namespace)
	if err != nil {
		return nil, err
	}
	key, err := credential.GenerateKey()
	if err != nil {
		return nil, err
	}
	sealer, err := credential.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return authsession.New().
		WithBaseURL(baseURL).
		WithBackend(backend, sealer).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build(ctx)
}

// runCachePhase measures the synchronous token read the request pipeline
// performs for every outgoing call.
func runCachePhase(mgr *authsession.Manager, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				_, ok := mgr.AccessToken()
				local = append(local, time.Since(t0))
				if !ok {
					failures.Add(1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type outcomes struct {
	ok, anonymous, rejected, other, flips atomic.Int64
}

// runRequestPhase issues authenticated calls while a toggler flips the
// session. Each call must go out either with the current token or with none.
func runRequestPhase(ctx context.Context, mgr *authsession.Manager, ops, concurrency int, every time.Duration) (phaseStats, *outcomes) {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		counts    = &outcomes{}
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	stop := make(chan struct{})
	toggled := make(chan struct{})
	go func() {
		defer close(toggled)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		loggedIn := true
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if loggedIn {
				mgr.Logout(ctx)
			} else if err := mgr.Login(ctx, loadEmail, loadPassword); err != nil {
				fmt.Fprintf(os.Stderr, "toggle login failed: %v\n", err)
				continue
			}
			loggedIn = !loggedIn
			counts.flips.Add(1)
		}
	}()

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				_, err := mgr.API().Me(ctx)
				local = append(local, time.Since(t0))
				classify(counts, err)
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	total := time.Since(start)
	close(stop)
	<-toggled

	return computeStats(total, latencies, counts.rejected.Load()+counts.other.Load()), counts
}

func classify(counts *outcomes, err error) {
	switch {
	case err == nil:
		counts.ok.Add(1)
	case apierror.Is(err, apierror.KindUnauthorized):
		ce, _ := apierror.As(err)
		if ce.Message == "Not authenticated" {
			counts.anonymous.Add(1)
		} else {
			counts.rejected.Add(1)
		}
	default:
		counts.other.Add(1)
	}
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
