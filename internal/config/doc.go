// Package config loads, normalizes, and validates recipebot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TELEGRAM_TOKEN, OPENAI_API_KEY and the per-platform *_COOKIES_CONTENT
// variables. The Config type centralizes every knob the daemon and CLI need,
// from the acquisition fallback ladder to the quota tariffs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
