// Package prometheus renders session metrics in the Prometheus text
// exposition format.
//
// Counters are named authsession_*_total; the one histogram is
// authsession_login_latency_seconds. The exporter reads a snapshot per
// scrape and owns no registry.
package prometheus
