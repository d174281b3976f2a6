// ABOUTME: Tests for admission control policy
// ABOUTME: Covers allow-list matching, fail-closed defaults, quota, and room size

package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chaz/internal/config"
)

func TestAccountAllowed_FullMatchOnly(t *testing.T) {
	g, err := New(config.LimitsConfig{AllowList: `@.*:example\.org`}, nil)
	require.NoError(t, err)

	assert.True(t, g.AccountAllowed("@alice:example.org"))
	assert.False(t, g.AccountAllowed("@alice:example.org.evil.com"))
	assert.False(t, g.AccountAllowed("prefix @alice:example.org"))
}

func TestAccountAllowed_EmptyListDeniesAll(t *testing.T) {
	g, err := New(config.LimitsConfig{}, nil)
	require.NoError(t, err)

	assert.False(t, g.AccountAllowed("@alice:example.org"))
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New(config.LimitsConfig{AllowList: "[unclosed"}, nil)
	assert.Error(t, err)
}

func TestAcceptInvite(t *testing.T) {
	g, err := New(config.LimitsConfig{AllowList: `@.*:example\.org`, RoomSizeLimit: 3}, nil)
	require.NoError(t, err)

	d := g.AcceptInvite("@alice:example.org", 2)
	assert.True(t, d.Allowed)

	d = g.AcceptInvite("@mallory:evil.com", 2)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotAllowed, d.Reason)

	d = g.AcceptInvite("@alice:example.org", 4)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoomTooLarge, d.Reason)
}

func TestCheckMessage_Quota(t *testing.T) {
	g, err := New(config.LimitsConfig{AllowList: ".*", MessageLimit: 2}, nil)
	require.NoError(t, err)

	// Counts 0 and 1 pass, 2 is denied
	assert.True(t, g.CheckMessage("@a:x", 0, 2).Allowed)
	assert.True(t, g.CheckMessage("@a:x", 1, 2).Allowed)

	d := g.CheckMessage("@a:x", 2, 2)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, d.Reason)
}

func TestCheckMessage_UnlimitedWhenZero(t *testing.T) {
	g, err := New(config.LimitsConfig{AllowList: ".*"}, nil)
	require.NoError(t, err)

	assert.True(t, g.CheckMessage("@a:x", 1_000_000, 500).Allowed)
}

func TestCheckMessage_RoomSizeRechecked(t *testing.T) {
	g, err := New(config.LimitsConfig{AllowList: ".*", RoomSizeLimit: 5}, nil)
	require.NoError(t, err)

	assert.True(t, g.CheckMessage("@a:x", 0, 5).Allowed)

	// Membership grew after join
	d := g.CheckMessage("@a:x", 0, 6)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoomTooLarge, d.Reason)
}
