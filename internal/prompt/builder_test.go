// ABOUTME: Tests for prompt assembly from room history
// ABOUTME: Covers role application, command filtering, media handling, and idempotence

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chaz/internal/role"
)

var testCommands = []string{"print", "send", "model", "backend", "role", "list", "clear", "rename", "help"}

func testBuilder() *Builder {
	return &Builder{Prefix: "!chaz", Commands: testCommands}
}

func TestBuild_TwoTurnTranscript(t *testing.T) {
	b := testBuilder()

	entries := []Entry{
		{ID: "$1", Sender: "@alice:x", Speaker: "alice", Text: "hello"},
		{ID: "$2", Sender: "@chaz:x", Speaker: "chaz", Text: "hi there", FromBot: true},
		{ID: "$3", Sender: "@alice:x", Speaker: "alice", Text: "how are you"},
	}

	p := b.Build(nil, entries, "")
	require.Len(t, p.Turns, 3)
	assert.Equal(t, TurnUser, p.Turns[0].Role)
	assert.Equal(t, "alice: hello", p.Turns[0].Content())
	assert.Equal(t, TurnAssistant, p.Turns[1].Role)
	assert.Equal(t, "hi there", p.Turns[1].Content())
	assert.Equal(t, "alice: how are you", p.Turns[2].Content())
}

func TestBuild_RolePromptAndExamples(t *testing.T) {
	b := testBuilder()
	r := &role.Role{
		Name:   "demo",
		Prompt: "You are demo.",
		Examples: []role.Example{
			{Speaker: role.SpeakerUser, Text: "Are you ready?"},
			{Speaker: role.SpeakerAssistant, Text: "Ready."},
		},
	}

	p := b.Build(r, []Entry{{ID: "$1", Speaker: "alice", Text: "go"}}, "")
	assert.Equal(t, "You are demo.", p.System)
	require.Len(t, p.Turns, 3)
	assert.Equal(t, TurnUser, p.Turns[0].Role)
	assert.Equal(t, "Are you ready?", p.Turns[0].Content())
	assert.Equal(t, TurnAssistant, p.Turns[1].Role)
	assert.Equal(t, "alice: go", p.Turns[2].Content())
}

func TestBuild_CommandsExcluded(t *testing.T) {
	b := testBuilder()

	entries := []Entry{
		{ID: "$1", Speaker: "alice", Text: "!chaz model gpt-4o"},
		{ID: "$2", Speaker: "alice", Text: "!chaz"},
		{ID: "$3", Speaker: "alice", Text: "!chaz LIST"},
		{ID: "$4", Speaker: "alice", Text: "keep me"},
	}

	p := b.Build(nil, entries, "")
	require.Len(t, p.Turns, 1)
	assert.Equal(t, "alice: keep me", p.Turns[0].Content())
}

func TestBuild_PrefixedFreeTextStripped(t *testing.T) {
	b := testBuilder()

	p := b.Build(nil, []Entry{{ID: "$1", Speaker: "alice", Text: "!chaz explain that to me"}}, "")
	require.Len(t, p.Turns, 1)
	assert.Equal(t, "alice: explain that to me", p.Turns[0].Content())
}

func TestBuild_ExtraUserTextIsFinalTurn(t *testing.T) {
	b := testBuilder()

	p := b.Build(nil, []Entry{{ID: "$1", Speaker: "bob", Text: "hello"}}, "explain that")
	require.Len(t, p.Turns, 2)
	last := p.Turns[len(p.Turns)-1]
	assert.Equal(t, TurnUser, last.Role)
	assert.Equal(t, "explain that", last.Content())
}

func TestBuild_MediaReferences(t *testing.T) {
	b := testBuilder()

	entries := []Entry{
		{ID: "$1", Speaker: "alice", Text: "look", MediaRefs: []string{"cat.png (image/png)"}},
		{ID: "$2", Speaker: "alice", MediaRefs: []string{"dog.jpg (image/jpeg)"}},
	}

	p := b.Build(nil, entries, "")
	require.Len(t, p.Turns, 2)
	assert.Equal(t, "alice: look [media: cat.png (image/png)]", p.Turns[0].Content())
	assert.Equal(t, "alice: [media: dog.jpg (image/jpeg)]", p.Turns[1].Content())
}

func TestBuild_MediaDisabledOmitsEntirely(t *testing.T) {
	b := testBuilder()
	b.DisableMedia = true

	entries := []Entry{
		{ID: "$1", Speaker: "alice", MediaRefs: []string{"cat.png"}},
		{ID: "$2", Speaker: "alice", Text: "with words", MediaRefs: []string{"cat.png"}},
	}

	p := b.Build(nil, entries, "")
	require.Len(t, p.Turns, 1)
	assert.Equal(t, "alice: with words", p.Turns[0].Content())
}

func TestBuild_Idempotent(t *testing.T) {
	b := testBuilder()
	r := &role.Role{Name: "demo", Prompt: "p", Examples: []role.Example{{Speaker: role.SpeakerUser, Text: "x"}}}
	entries := []Entry{
		{ID: "$1", Speaker: "alice", Text: "hello"},
		{ID: "$2", Speaker: "chaz", Text: "hi", FromBot: true},
		{ID: "$3", Speaker: "alice", Text: "!chaz and another thing", MediaRefs: []string{"a.png"}},
	}

	first := b.Build(r, entries, "extra")
	second := b.Build(r, entries, "extra")
	assert.Equal(t, first.RenderWithSystem(), second.RenderWithSystem())
}

func TestRender_TrailingAssistantLine(t *testing.T) {
	p := &Prompt{Turns: []Turn{
		{Role: TurnUser, Speaker: "alice", Text: "hello"},
		{Role: TurnAssistant, Text: "hi"},
	}}

	want := "USER: alice: hello\nASSISTANT: hi\nASSISTANT: "
	assert.Equal(t, want, p.Render())
}

func TestRenderWithSystem(t *testing.T) {
	p := &Prompt{System: "You are terse.", Turns: []Turn{{Role: TurnUser, Text: "hi"}}}
	assert.Equal(t, "You are terse.\nUSER: hi\nASSISTANT: ", p.RenderWithSystem())
}
