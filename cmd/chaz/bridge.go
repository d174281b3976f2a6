// ABOUTME: Matrix sync loop for chaz
// ABOUTME: Routes message and invite events into the bot layer

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/chaz/internal/bot"
	"github.com/2389/chaz/internal/config"
	"github.com/2389/chaz/internal/dedupe"
)

// networkTimeout bounds ad-hoc Matrix API calls made outside the sync loop.
const networkTimeout = 10 * time.Second

// dedupeTTL and dedupeSize bound the event dedupe tracker.
const (
	dedupeTTL  = 30 * time.Minute
	dedupeSize = 10000
)

// Bridge owns the Matrix connection and feeds events to the bot.
type Bridge struct {
	config    *config.Config
	matrix    *mautrix.Client
	transport *matrixTransport
	bot       *bot.Bot
	tracker   *dedupe.Tracker
	logger    *slog.Logger

	// startTime filters out messages that predate this process; room
	// history before the bot started is deliberately ignored as live
	// input (it still appears in context builds).
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates the Matrix client and transport. The bot field is
// wired by the caller once all collaborators exist.
func NewBridge(cfg *config.Config, logger *slog.Logger) (*Bridge, error) {
	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &Bridge{
		config:    cfg,
		matrix:    client,
		transport: newMatrixTransport(client, id.UserID(cfg.Matrix.UserID), logger),
		tracker:   dedupe.NewTracker(dedupeTTL, dedupeSize),
		logger:    logger.With("component", "bridge"),
		startTime: time.Now(),
	}, nil
}

// Run starts syncing and blocks until the context is cancelled or the
// sync loop fails. A sync failure is fatal: if the session itself cannot
// function there is nothing to supervise locally.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()
	defer b.tracker.Close()

	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)

	b.logger.Info("connecting to matrix homeserver", "homeserver", b.config.Matrix.Homeserver)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.matrix.SyncWithContext(b.ctx)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down")
		b.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMessageEvent routes one room message into the bot. Processing
// runs in its own goroutine so a slow backend call never stalls the
// sync loop; per-room ordering is enforced by the room state lock.
func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(b.config.Matrix.UserID) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	// Messages from before this process started are context, not input.
	if time.UnixMilli(evt.Timestamp).Before(b.startTime) {
		return
	}

	if b.tracker.Seen(evt.ID.String()) {
		b.logger.Debug("duplicate event dropped", "event_id", evt.ID)
		return
	}

	go func() {
		msg := bot.Event{
			RoomID:  evt.RoomID.String(),
			EventID: evt.ID.String(),
			Sender:  evt.Sender.String(),
			Body:    content.Body,
		}
		if err := b.bot.HandleMessage(b.ctx, msg); err != nil {
			b.logger.Error("message handling failed",
				"room", msg.RoomID, "event_id", msg.EventID, "error", err)
		}
	}()
}

// handleMemberEvent watches for invites addressed to the bot.
func (b *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != b.config.Matrix.UserID {
		return
	}
	if b.tracker.Seen(evt.ID.String()) {
		return
	}

	b.logger.Info("invite received", "room", evt.RoomID, "inviter", evt.Sender)
	go func() {
		if err := b.bot.HandleInvite(b.ctx, evt.RoomID.String(), evt.Sender.String()); err != nil {
			b.logger.Error("invite handling failed", "room", evt.RoomID, "error", err)
		}
	}()
}
