// Package config loads channel configurations from a directory of JSON
// files.
//
// Each file describes one channel: the waiting-pool dispatch policy, pool
// size, wait budget (relative duration or absolute start date), and the shape
// of the game rooms dispatched out of the pool. A "default" configuration is
// required at startup; all configurations are validated on load, and missing
// required fields fail immediately rather than being defaulted.
package config
