// Package telegram talks to the Telegram Bot API.
//
// Client covers the four methods the bot needs (getMe, getUpdates,
// sendMessage, sendVideo). Poller long-polls for updates and turns text
// messages into pipeline requests. Sink implements pipeline.Sink on top of
// Client so the orchestrator never sees Telegram types.
package telegram
