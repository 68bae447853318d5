// Command komf is the komf CLI.
//
// `komf serve` runs the daemon in the foreground; every other command talks to
// a running daemon over its HTTP API, using the bind address and token from
// the configuration file unless --api overrides the address.
package main
