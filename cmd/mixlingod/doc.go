// Package main is the mixlingod entrypoint: it loads configuration and runs
// the relay server until SIGINT or SIGTERM. `mixlingo serve` runs the same
// server from the CLI.
package main
