// Package translator renders language-tagged text into a target language.
//
// Live prompts a text generator and strips any tags the model echoes back.
// Fallback returns a deterministic mock ("[MOCK TRANSLATION TO ES] [MOCK]
// <reversed text>") whose body can be recovered with Unreverse, which keeps
// development and tests meaningful without credentials.
//
// Live degrades to the mock on transient capability failures but surfaces
// configuration failures as ErrUnavailable so the client sees a
// translationError instead of a silent placeholder.
package translator
