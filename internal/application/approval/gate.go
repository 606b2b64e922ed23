package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-guild-bot/internal/domain"
	"github.com/go-guild-bot/internal/pkg/cooldown"
)

// Gateway is the slice of the chat gateway the approval gate needs.
type Gateway interface {
	SendDirect(ctx context.Context, userID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	HasRole(ctx context.Context, guildID, memberID, roleID string) (bool, error)
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Service guards the general channel: a burst limiter first, then the
// Approved-role check. It also promotes verified members to Approved.
type Service interface {
	// Gate reports whether the message may stay in the general channel.
	// A rejected message is deleted and its author told why; the caller
	// must not process it any further.
	Gate(ctx context.Context, guildID, channelID, messageID string, author domain.GuildMember) bool
	Approve(ctx context.Context, guildID, targetID string) error
}

type ServiceDeps struct {
	Gateway        Gateway
	VerifiedRoleID string
	ApprovedRoleID string
	BurstWindow    time.Duration
	BurstMax       int
}

type service struct {
	ServiceDeps

	burst *cooldown.Window
}

func NewService(deps ServiceDeps) Service {
	return &service{
		ServiceDeps: deps,
		burst:       cooldown.NewWindow(deps.BurstWindow, deps.BurstMax),
	}
}

func (s *service) Gate(ctx context.Context, guildID, channelID, messageID string, author domain.GuildMember) bool {
	if !s.burst.Allow(author.ID, time.Now()) {
		s.reject(ctx, channelID, messageID, author.ID,
			"⏱️ You are sending messages too fast in #general. Max 5 per 10s.")
		return false
	}

	approved, err := s.Gateway.HasRole(ctx, guildID, author.ID, s.ApprovedRoleID)
	if err != nil {
		// Can't tell; let the message through rather than punish the author.
		slog.Warn("approved-role check failed", "member_id", author.ID, "err", err)
		return true
	}
	if !approved {
		s.reject(ctx, channelID, messageID, author.ID,
			"⛔ Only approved users can chat in #general.")
		return false
	}
	return true
}

// Approve grants the Approved role, but only to members already holding
// Verified; anyone else gets ErrPermissionDenied.
func (s *service) Approve(ctx context.Context, guildID, targetID string) error {
	verified, err := s.Gateway.HasRole(ctx, guildID, targetID, s.VerifiedRoleID)
	if err != nil {
		return fmt.Errorf("verified-role check: %w", err)
	}
	if !verified {
		return fmt.Errorf("member %s: %w", targetID, domain.ErrPermissionDenied)
	}
	if err := s.Gateway.GrantRole(ctx, guildID, targetID, s.ApprovedRoleID); err != nil {
		return fmt.Errorf("grant approved role: %w", err)
	}
	return nil
}

// reject removes the offending message and DMs the author the reason.
// Both are best-effort: the message may already be gone and DMs may be
// closed.
func (s *service) reject(ctx context.Context, channelID, messageID, authorID, reason string) {
	if err := s.Gateway.DeleteMessage(ctx, channelID, messageID); err != nil {
		slog.Warn("could not delete gated message", "message_id", messageID, "err", err)
	}
	if err := s.Gateway.SendDirect(ctx, authorID, reason); err != nil {
		slog.Warn("could not DM gate notice", "member_id", authorID, "err", err)
	}
}
