// Package postprocess applies the configured transformations to matched
// metadata before it is written back to the media server: series title
// selection, alternative title filtering, the score tag, reading direction
// and language overrides, book ordering and the one-shot back-fill.
//
// Processing is deterministic and never mutates its input.
package postprocess
