// Command authsession-benchdiff compares two `go test -bench` outputs and
// fails when a tracked benchmark regresses past the threshold.
//
//	go test -run '^$' -bench . -count 6 . > new.txt
//	authsession-benchdiff -baseline old.txt -candidate new.txt
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const defaultThreshold = 0.30

// defaultTracked covers the per-request hot path: the cached token read and
// the bearer-injecting transport.
var defaultTracked = tracked{
	"BenchmarkAccessToken":                {"ns/op", "allocs/op"},
	"BenchmarkAuthenticatedRoundTrip":     {"ns/op", "allocs/op"},
	"BenchmarkMetricsInc/enabled":         {"ns/op"},
	"BenchmarkMetricsObserveLoginLatency": {"ns/op"},
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		only          string
	)
	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.StringVar(&only, "bench", "", "comma-separated benchmark names to track instead of the defaults (ns/op only)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	track := defaultTracked
	if only != "" {
		track = tracked{}
		for _, name := range strings.Split(only, ",") {
			if name = strings.TrimSpace(name); name != "" {
				track[name] = []string{"ns/op"}
			}
		}
	}

	baseline, err := parseFile(baselinePath, track)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(candidatePath, track)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(track, baseline, candidate, threshold)
	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}
