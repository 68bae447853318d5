// Package metadata defines the provider-agnostic series and book metadata model
// shared by providers, the matching engine and the media-server write-back.
//
// Values are treated as immutable: helpers such as MergeSeries and MergeBooks
// always return fresh copies and never alias the slices of their inputs. Zero
// values mean "absent" for strings and enums; optional numbers are pointers.
package metadata
