// Package config defines the reelflow configuration model and loads it
// from defaults, a YAML file, and environment variable overrides. It also
// provides a polling file watcher used to notice config file changes at
// runtime.
package config
