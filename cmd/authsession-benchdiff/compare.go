package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// tracked maps a benchmark name (without the -GOMAXPROCS suffix) to the
// units compared for it.
type tracked map[string][]string

// samples holds every value seen per benchmark and unit.
type samples map[string]map[string][]float64

type row struct {
	benchmark string
	metric    string
	baseline  float64
	candidate float64
	delta     float64
}

func parseFile(path string, track tracked) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, track)
}

func parse(r io.Reader, track tracked) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		if _, ok := track[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// compare returns one row per tracked metric in name order and a failure
// line for every missing sample or regression above threshold. A zero
// baseline (e.g. 0 allocs/op) regresses on any positive candidate value.
func compare(track tracked, baseline, candidate samples, threshold float64) ([]row, []string) {
	names := make([]string, 0, len(track))
	for name := range track {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []row
		failures []string
	)
	for _, name := range names {
		for _, metric := range track[name] {
			b, c := baseline[name][metric], candidate[name][metric]
			if len(b) == 0 || len(c) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, metric))
				continue
			}
			r := row{benchmark: name, metric: metric, baseline: median(b), candidate: median(c)}
			switch {
			case r.baseline > 0:
				r.delta = (r.candidate - r.baseline) / r.baseline
			case r.candidate > 0:
				r.delta = 1
			}
			rows = append(rows, r)
			if r.delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, metric, r.delta*100, threshold*100))
			}
		}
	}
	return rows, failures
}
