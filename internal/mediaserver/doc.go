// Package mediaserver defines the media server contract metadata is written
// back to, plus the Updater that turns a matched SeriesAndBookMetadata into
// lock-respecting patches and thumbnail uploads.
//
// Concrete adapters live in the komga and kavita subpackages.
package mediaserver
