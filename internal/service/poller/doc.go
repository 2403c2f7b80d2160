// Package poller runs the control loop of the bridge: every interval it checks
// the night gate, counts triggered incidents and plays the alert sequence when
// there are any.
package poller
