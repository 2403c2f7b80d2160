// Package common holds helpers shared by several services.
//
// It provides the Clock abstraction the poll loop and the alert sequencer wait
// on, with a real implementation and a fake one that advances virtual time.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
