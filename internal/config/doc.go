// Package config provides configuration structures and utilities for serpscan.
// It defines the outbound request settings used by the crawler and auditor,
// the storage selection, and the server and scheduler options, together with
// the YAML configuration file and environment overrides that populate them.
package config
