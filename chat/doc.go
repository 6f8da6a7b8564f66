// Package chat contains the two chat source adapters and the per-message
// ingestion pipeline they share.
//
// Adapters:
//   - LiveClient: connects to Twitch IRC over TLS, authenticates with a bot
//     nick and OAuth token, joins the configured channels, answers keep-alive
//     PINGs, and parses PRIVMSG lines into canonical messages.
//   - ReplayClient: reads fixture JSONL files (one per channel), filling in
//     any fields the fixture omits, with a fixed pacing delay between
//     records to emulate real-time chat.
//
// Both drive the same Pipeline per message: idempotent append to the log,
// signal extraction, then the user/channel profile rollup. Runs are bounded
// by a wall-clock duration; cancellation is cooperative via context,
// checked between lines.
package chat
