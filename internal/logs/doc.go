// Package logs reads the daemon log file for `komf logs`.
//
// Last returns the final lines of the file with bounded memory; Follow polls
// for appended lines, emitting only complete lines and starting over when the
// file is truncated or replaced.
package logs
