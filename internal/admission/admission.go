// ABOUTME: Admission control policy for chaz: allow list, quota, room size
// ABOUTME: Decides whether accounts and rooms may interact with the bot at all

package admission

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/2389/chaz/internal/config"
)

// Reason explains why a message was denied. Denial is a policy outcome,
// not an error: the caller decides whether to stay silent or notify once.
type Reason string

// Denial reasons
const (
	ReasonNotAllowed    Reason = "sender not on allow list"
	ReasonQuotaExceeded Reason = "message quota exceeded"
	ReasonRoomTooLarge  Reason = "room exceeds size limit"
)

// Decision is the outcome of a per-message admission check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// allow is the decision for admitted messages.
var allow = Decision{Allowed: true}

// deny builds a denial decision.
func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Gate evaluates admission policy. Immutable after construction and safe
// for concurrent use from any number of rooms.
type Gate struct {
	pattern       *regexp.Regexp // nil denies everyone
	messageLimit  uint64
	roomSizeLimit int
	logger        *slog.Logger
}

// New builds a gate from the configured limits. The allow list must be a
// valid regular expression; it is matched against the entire account ID,
// never a substring. An empty allow list denies all accounts.
func New(cfg config.LimitsConfig, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		messageLimit:  cfg.MessageLimit,
		roomSizeLimit: cfg.RoomSizeLimit,
		logger:        logger.With("component", "admission"),
	}
	if cfg.AllowList != "" {
		pattern, err := regexp.Compile(`\A(?:` + cfg.AllowList + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("compiling allow list: %w", err)
		}
		g.pattern = pattern
	}
	return g, nil
}

// AccountAllowed reports whether the account fully matches the allow
// list. With no allow list configured, nobody is allowed.
func (g *Gate) AccountAllowed(account string) bool {
	if g.pattern == nil {
		return false
	}
	return g.pattern.MatchString(account)
}

// AcceptInvite decides whether to join a room on the inviting account's
// behalf. Room size is re-checked per message as well, since membership
// can grow after acceptance.
func (g *Gate) AcceptInvite(invitingAccount string, roomSize int) Decision {
	if !g.AccountAllowed(invitingAccount) {
		g.logger.Debug("invite denied", "account", invitingAccount)
		return deny(ReasonNotAllowed)
	}
	if g.roomSizeLimit > 0 && roomSize > g.roomSizeLimit {
		g.logger.Debug("invite denied, room too large", "account", invitingAccount, "size", roomSize)
		return deny(ReasonRoomTooLarge)
	}
	return allow
}

// CheckMessage decides whether a message may be acted on. senderCount is
// the number of conversational turns this sender has already consumed in
// the room; the caller increments it only when a turn actually reaches a
// backend, so commands that cost nothing never count against quota.
func (g *Gate) CheckMessage(sender string, senderCount uint64, roomSize int) Decision {
	if !g.AccountAllowed(sender) {
		return deny(ReasonNotAllowed)
	}
	if g.roomSizeLimit > 0 && roomSize > g.roomSizeLimit {
		return deny(ReasonRoomTooLarge)
	}
	if g.messageLimit > 0 && senderCount >= g.messageLimit {
		return deny(ReasonQuotaExceeded)
	}
	return allow
}

// MessageLimit returns the configured per-account quota (0 = unlimited).
func (g *Gate) MessageLimit() uint64 {
	return g.messageLimit
}
