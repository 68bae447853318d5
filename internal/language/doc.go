// Package language normalizes the language tags attached to series titles.
//
// Providers report tags such as "en", "ja-ro" (romanized Japanese) or
// "zh-hk". Configuration may spell the same language as an ISO 639-2 code or
// an English name, so both sides are reduced to a lowercase tag before they
// are compared.
package language
