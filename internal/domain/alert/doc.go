// Package alert contains the core domain types of the alerting bridge.
//
// It defines the per-cycle incident Snapshot, the phases an alert sequence goes
// through on a light, and the color constants of the attention pattern.
package alert
