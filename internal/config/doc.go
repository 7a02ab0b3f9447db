// Package config loads, validates, and defaults the clipper
// configuration. All tunable thresholds live here; nothing deeper in
// the pipeline reads the environment directly.
package config
