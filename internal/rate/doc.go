// Package rate implements fixed-window request counters for the fake API.
//
// # Window semantics
//
// A window opens on the first hit for a key and lasts for the configured
// duration. With Redis this is INCR plus EXPIRE on the first hit; the
// in-memory counter stores the window start per key. Redis keys are
// "<prefix>rl:<key>".
//
// # What this package must NOT do
//
//   - Decide who gets limited. Callers pick the key.
//   - Be imported by client-side packages.
package rate
