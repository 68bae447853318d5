// Package store persists komf state in a SQLite database.
//
// The database holds metadata job records, sticky series matches and the
// references of thumbnails komf uploaded to the media server. Store
// implements jobs.Repository, identification.SeriesMatchRepository and
// mediaserver.ThumbnailRepository.
//
// Connections run in WAL mode and writes retry briefly when SQLite reports
// the database as busy. The schema is created on first open; a database
// written by a different schema version is rejected with ErrSchemaMismatch.
package store
