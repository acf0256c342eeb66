// Package config loads and validates the JSON application configuration.
//
// Every setting has a working default, so a config file is optional and
// only overrides what it names. Files are checked against a JSON schema
// before decoding; unknown keys are rejected instead of silently ignored.
package config
