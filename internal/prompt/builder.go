// ABOUTME: Context builder producing prompts from room history transcripts
// ABOUTME: Applies role prompt and examples, command filtering, and media references

package prompt

import (
	"strings"

	"github.com/2389/chaz/internal/role"
)

// Entry is one human-visible message event from room history, in
// chronological order. Entries are derived read-only from the transport's
// event feed at build time and never persisted.
type Entry struct {
	// ID is the event's ordering position (the protocol event ID).
	ID string
	// Sender is the protocol account that sent the event.
	Sender string
	// Speaker is the sender's display name used to tag transcript turns.
	Speaker string
	// Text is the message body. Empty for pure media events.
	Text string
	// MediaRefs are textual references to attached media, in order.
	MediaRefs []string
	// FromBot marks events sent by the bot itself; they become
	// assistant turns instead of user turns.
	FromBot bool
}

// Builder assembles prompts from room history. The zero value is not
// useful; set Prefix to the configured command token.
type Builder struct {
	// Prefix is the command token, e.g. "!chaz".
	Prefix string
	// Commands are the recognized subcommand words. Messages consisting
	// of the prefix plus a recognized subcommand are dropped from
	// transcripts; a prefixed message with other trailing text is kept
	// with the prefix stripped.
	Commands []string
	// DisableMedia omits media events entirely instead of representing
	// them with a textual reference.
	DisableMedia bool
}

// Build produces the prompt for a conversational turn: the role's prompt
// as system text, the role's example exchanges as prefix turns, then one
// speaker-tagged turn per transcript entry, and finally extraUserText (if
// any) as the closing user turn.
//
// Build is pure: the same role, entries, and extra text always produce
// an identical Prompt.
func (b *Builder) Build(r *role.Role, entries []Entry, extraUserText string) *Prompt {
	p := &Prompt{}

	if r != nil {
		p.System = r.Prompt
		for _, ex := range r.Examples {
			turnRole := TurnUser
			if ex.Speaker == role.SpeakerAssistant {
				turnRole = TurnAssistant
			}
			p.Turns = append(p.Turns, Turn{Role: turnRole, Text: ex.Text})
		}
	}

	for _, entry := range entries {
		text, ok := b.entryText(entry)
		if !ok {
			continue
		}
		turn := Turn{Role: TurnUser, Speaker: entry.Speaker, Text: text}
		if entry.FromBot {
			// The bot's own messages are assistant turns and never
			// speaker-tagged.
			turn = Turn{Role: TurnAssistant, Text: text}
		}
		p.Turns = append(p.Turns, turn)
	}

	if extraUserText != "" {
		p.Turns = append(p.Turns, Turn{Role: TurnUser, Text: extraUserText})
	}

	return p
}

// entryText resolves the transcript text for a history entry, or reports
// that the entry is out of scope (recognized command, bare prefix, or
// suppressed media).
func (b *Builder) entryText(entry Entry) (string, bool) {
	text := entry.Text

	if b.Prefix != "" && strings.HasPrefix(text, b.Prefix) {
		rest := strings.TrimSpace(strings.TrimPrefix(text, b.Prefix))
		if rest == "" {
			return "", false
		}
		if word, _, _ := strings.Cut(rest, " "); b.isCommand(word) {
			return "", false
		}
		// Prefixed free text stays in the transcript without the prefix.
		text = rest
	}

	if len(entry.MediaRefs) > 0 && !b.DisableMedia {
		refs := make([]string, len(entry.MediaRefs))
		for i, ref := range entry.MediaRefs {
			refs[i] = "[media: " + ref + "]"
		}
		if text != "" {
			text += " "
		}
		text += strings.Join(refs, " ")
	}

	if text == "" {
		return "", false
	}
	return text, true
}

// isCommand reports whether word is a recognized subcommand, ignoring case.
func (b *Builder) isCommand(word string) bool {
	for _, cmd := range b.Commands {
		if strings.EqualFold(word, cmd) {
			return true
		}
	}
	return false
}
