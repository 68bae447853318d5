// Package daemon coordinates the long-running komf process.
//
// It wires configuration, the SQLite store, the provider catalog, the media
// server client, the job tracker and the identification service into a single
// lifecycle with flock-based locking to prevent multiple instances. Jobs left
// RUNNING by a previous process are failed on start, and the HTTP API is
// served until the daemon stops.
//
// Keep orchestration logic here: matching and write-back live in their
// respective packages while the daemon focuses on startup, shutdown and
// status reporting.
package daemon
