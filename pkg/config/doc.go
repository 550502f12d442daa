// Package config provides configuration loading, validation, and hot reload
// for Mercury.
//
// Configuration is YAML-based with environment variable overrides using the
// MERCURY_SECTION_FIELD convention. The central piece is the rate card: a
// table of per-service capacity, rolling window, and monthly limit consumed
// by the governance layer. The table is validated once at startup so that
// unknown services and impossible limits fail early.
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("mercury.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The rate card can be hot-reloaded with a Watcher; see NewWatcher.
package config
