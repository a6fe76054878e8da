// Package config provides configuration loading and validation for NoteFlow.
// Settings come from an optional YAML file layered over Default(), with
// secrets taken from the environment (optionally seeded from a .env file).
package config
