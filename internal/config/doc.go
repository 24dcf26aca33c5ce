// Package config loads and validates capstan's daemon configuration.
//
// Configuration lives in a single YAML file, config.yaml, inside the
// configuration directory (default ~/.config/capstan, overridable with
// --config-path). A missing file is not an error: every field has a
// default, and values in the file overlay the defaults field by field.
//
// Application definitions are data, not configuration: in filesystem
// registry mode they live as individual YAML files in the apps/
// directory beside config.yaml (see internal/registry).
//
// Example config.yaml:
//
//	server:
//	  host: localhost
//	  port: 8530
//	engine:
//	  workers: 4
//	  resyncInterval: 3m
//	  sourcePollInterval: 1m
//	  retry:
//	    baseBackoff: 5s
//	    maxBackoff: 5m
//	health:
//	  timeout: 2m
//	registry:
//	  mode: filesystem
//	logging:
//	  level: info
//	  format: text
package config
