// Package sequencer plays the alert pattern on a light: power on, blink red and
// blue, hold a near-white color, power off.
package sequencer
