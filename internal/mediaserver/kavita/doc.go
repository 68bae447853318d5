// Package kavita adapts the Kavita REST API to mediaserver.Client.
//
// Kavita authenticates plugins by exchanging an API key for a JWT. The
// TokenManager caches that JWT until shortly before its exp claim and makes
// sure concurrent callers that observe an expired token trigger a single
// refresh. Books map onto Kavita chapters.
package kavita
