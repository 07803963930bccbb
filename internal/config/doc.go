// Package config provides the configuration of crawlscope: built-in
// defaults, the YAML configuration file with per-site settings, the
// environment and flag overlay, and validation.
package config
