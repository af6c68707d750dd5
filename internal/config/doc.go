// Package config loads, normalizes, and validates mixlingo configuration.
//
// It supplies repository defaults, reads TOML files, overlays the
// environment variables deployments already use (PORT, CLIENT_URL,
// OPENAI_API_KEY, LEMONFOX_API_KEY and friends), and expands user paths. The
// Config type centralizes every knob the server and CLI need.
//
// Missing capability credentials never fail a load; callers inspect
// LLMConfigured and STTConfigured to pick live or fallback pipeline variants.
package config
