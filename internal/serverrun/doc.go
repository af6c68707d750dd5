// Package serverrun wires configuration, logging, and the capability
// pipeline into a running relay server process.
package serverrun
