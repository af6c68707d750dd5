// Package preflight provides readiness checks for the directories and
// external capabilities the relay server depends on.
//
// The server runs RunAll at startup and logs failures without refusing to
// start, since a missing or broken capability only degrades the pipeline to
// its fallback variants. The CLI `check` command prints the same results.
package preflight
