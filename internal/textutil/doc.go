// Package textutil provides text folding and similarity utilities for title
// matching.
//
// The primary use cases are:
//   - Folding titles for comparison (case folding, accent stripping, width folding)
//   - Building dedupe keys for alternative titles
//   - Creating token fingerprints and computing cosine similarity between them
//
// Tokenization folds text first, splits on anything that is not a letter or
// digit, and drops single-character tokens.
package textutil
