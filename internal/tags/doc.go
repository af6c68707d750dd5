// Package tags implements the inline language annotation grammar used across
// mixlingo.
//
// Annotated text interleaves plain text with markers such as [[EN]],
// [[PT:BR]], [[AMB:en/fr]], and [[UNK]]. A marker applies to every character
// that follows it up to the next marker or the end of the string; text before
// the first marker carries no language.
//
// Parse, Standardize, Strip, and Segments all share one compiled pattern so
// the operations can never disagree about what counts as a tag. Codes are not
// validated against ISO lists here; see the language package for that.
package tags
