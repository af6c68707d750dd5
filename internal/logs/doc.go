// Package logs reads the server's JSON log file for the CLI.
//
// It returns the last N records with bounded memory, follows the file as the
// server appends to it (restarting from the top when the file is truncated),
// and renders records as single console lines filtered by level or relay
// connection.
package logs
