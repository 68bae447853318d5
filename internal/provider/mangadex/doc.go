// Package mangadex implements the MangaDex metadata provider.
//
// Series metadata comes from the manga endpoint, books are the volumes
// listed by the aggregate endpoint and book covers come from the cover
// endpoint. All requests go through a shared ratelimit.Client.
package mangadex
