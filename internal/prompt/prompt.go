// ABOUTME: Prompt and turn types for chaz completion requests
// ABOUTME: Deterministic text rendering used by the print command and adapter backends

package prompt

import "strings"

// TurnRole identifies who speaks a prompt turn.
type TurnRole string

// Turn role constants
const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
)

// Turn is a single speaker-tagged line of a prompt.
// Speaker is the display name of the sender and may be empty
// for role example turns and for the trailing free-text turn.
type Turn struct {
	Role    TurnRole
	Speaker string
	Text    string
}

// Content returns the turn text with the speaker tag applied.
func (t Turn) Content() string {
	if t.Speaker == "" {
		return t.Text
	}
	return t.Speaker + ": " + t.Text
}

// Prompt is the assembled input for a single completion request:
// a system prompt followed by ordered turns. Building a Prompt twice
// from the same history yields byte-identical renderings.
type Prompt struct {
	System string
	Turns  []Turn
}

// Render returns the transcript portion as a single string, one line
// per turn, ending with an open assistant line for the model to complete.
func (p *Prompt) Render() string {
	var sb strings.Builder
	for _, turn := range p.Turns {
		switch turn.Role {
		case TurnAssistant:
			sb.WriteString("ASSISTANT: ")
		default:
			sb.WriteString("USER: ")
		}
		sb.WriteString(turn.Content())
		sb.WriteString("\n")
	}
	sb.WriteString("ASSISTANT: ")
	return sb.String()
}

// RenderWithSystem returns the full prompt as a single string with the
// system prompt prepended. Used by adapter backends that take one blob
// of text instead of structured messages.
func (p *Prompt) RenderWithSystem() string {
	if p.System == "" {
		return p.Render()
	}
	return p.System + "\n" + p.Render()
}
