// Package komga adapts the Komga REST API to mediaserver.Client using HTTP
// basic authentication.
package komga
