// Package pagerduty is a minimal client for the PagerDuty REST API v2 that counts
// triggered incidents.
package pagerduty
