// Package config defines the settings of the pager-light process and loads them
// from an optional YAML file overlaid with environment variables.
package config
