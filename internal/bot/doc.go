// ABOUTME: Package doc for internal/bot
// ABOUTME: Describes the command dispatcher and response dispatcher

// Package bot is the conversation orchestration layer: it decides, for
// every incoming room event, whether to act, parses the command grammar,
// mutates room state and the registries, builds prompts, invokes
// backends, and reports replies and errors back into the room.
//
// The protocol transport is consumed behind the Transport interface so
// the whole layer is testable without a homeserver.
package bot
