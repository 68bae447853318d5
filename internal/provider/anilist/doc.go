// Package anilist implements the AniList metadata provider over its GraphQL
// API. AniList only supplies series-level metadata; its book list is empty.
package anilist
