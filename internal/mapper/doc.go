// Package mapper annotates mixed-language text with [[CODE]] segment tags.
//
// Two variants share the Mapper interface and are chosen once at startup:
// Live prompts a text generator and verifies that its answer preserved the
// input, and Fallback applies a deterministic rule (existing tags are
// standardized, untagged text is marked [[EN]]). Live degrades to the
// Fallback result on any capability failure, so callers only ever see a
// context error.
package mapper
