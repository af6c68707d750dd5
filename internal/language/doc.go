// Package language provides language code normalization for hint lists,
// target languages, and display names.
//
// The curated table covers the languages offered to users; anything else is
// validated and named through golang.org/x/text so prompts can still refer to
// a language by name.
package language
