// Package config loads the process-wide configuration from HOSTING_*
// environment variables, with an optional YAML plans file overriding the
// built-in free and premium limit tables.
package config
