package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-guild-bot/internal/domain"
)

// onCommand parses and runs a prefix command. Replies are user-facing;
// only unexpected service failures propagate to the dispatcher.
func (d *Dispatcher) onCommand(ctx context.Context, e MessageEvent) error {
	fields := strings.Fields(strings.TrimPrefix(e.Content, d.deps.CommandPrefix))
	if len(fields) == 0 {
		return nil
	}
	cmd := fields[0]

	switch cmd {
	case "verify":
		return d.cmdVerify(ctx, e, fields[1:])
	case "genotp":
		return d.cmdGenOTP(ctx, e)
	case "thanks":
		return d.cmdThanks(ctx, e)
	case "apr", "authreset":
		if e.ChannelID != d.deps.AdminChannelID {
			return nil
		}
		if !d.isAdmin(ctx, e) {
			return nil
		}
		if cmd == "apr" {
			return d.cmdApprove(ctx, e)
		}
		return d.cmdAuthReset(ctx, e)
	}
	return nil
}

func (d *Dispatcher) cmdVerify(ctx context.Context, e MessageEvent, args []string) error {
	if len(args) == 0 {
		d.reply(ctx, e.ChannelID, "Invalid or used OTP.")
		return nil
	}
	err := d.deps.Verification.VerifyByCode(ctx, e.GuildID, e.Author.ID, args[0])
	switch {
	case err == nil:
		d.reply(ctx, e.ChannelID, "✅ You have been verified!")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		d.reply(ctx, e.ChannelID, "Invalid or used OTP.")
		return nil
	default:
		d.reply(ctx, e.ChannelID, "❌ Verification failed. Contact an admin.")
		return err
	}
}

// cmdGenOTP mints a code for the mentioned member and DMs it to them.
// Administrators only.
func (d *Dispatcher) cmdGenOTP(ctx context.Context, e MessageEvent) error {
	if !d.isAdmin(ctx, e) {
		return nil
	}
	if len(e.Mentions) == 0 {
		d.reply(ctx, e.ChannelID, "Mention a user.")
		return nil
	}
	target := e.Mentions[0]

	code, err := d.deps.OTPs.Issue(ctx, target.ID)
	if err != nil {
		d.reply(ctx, e.ChannelID, "❌ Could not generate an OTP. Try again.")
		return err
	}
	if err := d.deps.Gateway.SendDirect(ctx, target.ID, fmt.Sprintf("Your OTP code is: %s", code)); err != nil {
		slog.Warn("could not DM generated OTP", "member_id", target.ID, "err", err)
	}
	d.reply(ctx, e.ChannelID, fmt.Sprintf("OTP generated for %s", target.Username))
	return nil
}

func (d *Dispatcher) cmdThanks(ctx context.Context, e MessageEvent) error {
	if len(e.Mentions) == 0 {
		d.reply(ctx, e.ChannelID, "Please mention someone to thank.")
		return nil
	}
	return d.deps.Points.ThankCommand(ctx, e.GuildID, e.ChannelID, e.Author, e.Mentions[0])
}

func (d *Dispatcher) cmdApprove(ctx context.Context, e MessageEvent) error {
	if len(e.Mentions) == 0 {
		d.reply(ctx, e.ChannelID, "❗ Please mention a user to approve, like `!apr @username`")
		return nil
	}
	target := e.Mentions[0]

	err := d.deps.Approval.Approve(ctx, e.GuildID, target.ID)
	switch {
	case err == nil:
		d.reply(ctx, e.ChannelID, fmt.Sprintf("✅ %s is now Approved.", target.Username))
		return nil
	case errors.Is(err, domain.ErrPermissionDenied):
		d.reply(ctx, e.ChannelID, "🚫 That user is not Verified yet.")
		return nil
	default:
		d.reply(ctx, e.ChannelID, "❌ Approval failed. Try again.")
		return err
	}
}

func (d *Dispatcher) cmdAuthReset(ctx context.Context, e MessageEvent) error {
	if _, err := d.deps.Verification.ResetAll(ctx, e.GuildID); err != nil {
		d.reply(ctx, e.ChannelID, "❌ Reset failed. Try again.")
		return err
	}
	d.reply(ctx, e.ChannelID, "All users have been reset and must re-authenticate.")
	return nil
}

// isAdmin is a permission probe for privileged commands. A failed probe
// denies: better to make an admin retry than let anyone mint codes.
func (d *Dispatcher) isAdmin(ctx context.Context, e MessageEvent) bool {
	ok, err := d.deps.Gateway.IsAdmin(ctx, e.GuildID, e.Author.ID)
	if err != nil {
		slog.Warn("admin check failed", "member_id", e.Author.ID, "err", err)
		return false
	}
	return ok
}
