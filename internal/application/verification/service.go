package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-guild-bot/internal/domain"
)

// Gateway is the slice of the chat gateway the onboarding flow needs.
type Gateway interface {
	SendMessage(ctx context.Context, channelID, text string) error
	SendDirect(ctx context.Context, userID, text string) error
	CreatePrivateChannel(ctx context.Context, guildID, memberID, name string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
	ListAdmins(ctx context.Context, guildID string) ([]domain.GuildMember, error)
	ListMembersWithRole(ctx context.Context, guildID, roleID string) ([]domain.GuildMember, error)
}

// SecretStore reads and rotates the server-wide shared secret.
type SecretStore interface {
	Current(ctx context.Context) (*domain.ServerSecret, error)
	Rotate(ctx context.Context, newValue string) error
}

// Redeemer redeems admin-issued per-user OTP codes.
type Redeemer interface {
	Redeem(ctx context.Context, code string) (*domain.OTP, error)
}

// Alerter publishes staff-facing audit alerts. Optional.
type Alerter interface {
	Publish(ctx context.Context, subject, message string) error
}

// Service drives the onboarding workflow: a new member gets a private
// challenge channel and one attempt at the current shared secret before
// a hard deadline, and separately any member can redeem an admin-issued
// OTP via the verify command.
type Service interface {
	StartOnboarding(ctx context.Context, guildID string, m domain.GuildMember) error
	// HandleChannelMessage reports whether the message belonged to a
	// pending onboarding channel; if so the caller must not process the
	// message any further.
	HandleChannelMessage(ctx context.Context, channelID, authorID, content string) (bool, error)
	VerifyByCode(ctx context.Context, guildID, memberID, code string) error
	ResetAll(ctx context.Context, guildID string) (int, error)
	EnsureSecret(ctx context.Context) error
}

type ServiceDeps struct {
	Gateway        Gateway
	Secrets        SecretStore
	OTPs           Redeemer
	Alerts         Alerter // nil disables audit alerts
	VerifiedRoleID string
	CommandPrefix  string
	OnboardTimeout time.Duration
	CleanupGrace   time.Duration
}

// pending is one member's onboarding, alive from channel creation until
// the deadline fires. attempted marks the one allowed validation
// attempt: once spent, later messages are swallowed until timeout.
type pending struct {
	guildID   string
	member    domain.GuildMember
	attempted bool
	timer     *time.Timer
}

type service struct {
	ServiceDeps

	mu      sync.Mutex
	pending map[string]*pending // keyed by challenge channel id
}

func NewService(deps ServiceDeps) Service {
	return &service{ServiceDeps: deps, pending: make(map[string]*pending)}
}

// EnsureSecret seeds the shared secret on first run so the onboarding
// prompt always has something to check against.
func (s *service) EnsureSecret(ctx context.Context) error {
	_, err := s.Secrets.Current(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	value, err := newSecretValue()
	if err != nil {
		return err
	}
	if err := s.Secrets.Rotate(ctx, value); err != nil {
		return err
	}
	slog.Info("seeded onboarding shared secret")
	return nil
}

func (s *service) StartOnboarding(ctx context.Context, guildID string, m domain.GuildMember) error {
	if m.Bot {
		return nil
	}
	channelID, err := s.Gateway.CreatePrivateChannel(ctx, guildID, m.ID, channelName(m.Username))
	if err != nil {
		return fmt.Errorf("create challenge channel: %w", err)
	}

	s.mu.Lock()
	p := &pending{guildID: guildID, member: m}
	p.timer = time.AfterFunc(s.OnboardTimeout, func() { s.expire(channelID) })
	s.pending[channelID] = p
	s.mu.Unlock()

	prompt := fmt.Sprintf("Welcome %s! Please enter the OTP password to verify yourself.", m.Username)
	if err := s.Gateway.SendMessage(ctx, channelID, prompt); err != nil {
		slog.Warn("could not send challenge prompt", "channel_id", channelID, "err", err)
	}
	return nil
}

func (s *service) HandleChannelMessage(ctx context.Context, channelID, authorID, content string) (bool, error) {
	s.mu.Lock()
	p, ok := s.pending[channelID]
	if !ok || p.member.ID != authorID {
		s.mu.Unlock()
		return false, nil
	}
	if p.attempted {
		// The one allowed attempt is spent; swallow until the deadline.
		s.mu.Unlock()
		return true, nil
	}
	p.attempted = true
	s.mu.Unlock()

	secret, err := s.Secrets.Current(ctx)
	if err != nil {
		s.send(ctx, channelID, "❌ Verification is unavailable right now. Contact an admin.")
		return true, fmt.Errorf("load shared secret: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(content), secret.Value) {
		s.send(ctx, channelID, "❌ Incorrect OTP. Try again or contact support.")
		return true, nil
	}

	if err := s.Gateway.GrantRole(ctx, p.guildID, p.member.ID, s.VerifiedRoleID); err != nil {
		s.send(ctx, channelID, "❌ Could not assign the Verified role. Contact an admin.")
		return true, fmt.Errorf("grant verified role: %w", err)
	}

	s.send(ctx, channelID, "✅ You have been verified!")

	newValue, err := newSecretValue()
	if err == nil {
		err = s.Secrets.Rotate(ctx, newValue)
	}
	if err != nil {
		// The member is already verified; staff must rotate by hand.
		s.send(ctx, channelID, "⚠️ Verification succeeded but the server password could not be rotated. Contact an admin.")
		return true, fmt.Errorf("rotate shared secret: %w", err)
	}

	s.notifyAdmins(ctx, p.guildID, p.member.Username)
	if s.Alerts != nil {
		msg := fmt.Sprintf("member %s (%s) verified; shared secret rotated", p.member.Username, p.member.ID)
		if err := s.Alerts.Publish(ctx, "member verified", msg); err != nil {
			slog.Warn("could not publish verification alert", "member_id", p.member.ID, "err", err)
		}
	}

	s.scheduleCleanup(channelID)
	return true, nil
}

// expire fires at the onboarding deadline. A spent attempt means the
// member already got their answer; only the silent case gets the
// timeout notice. Either way the pending entry is gone afterwards, so
// late messages can never transition state.
func (s *service) expire(channelID string) {
	s.mu.Lock()
	p, ok := s.pending[channelID]
	delete(s.pending, channelID)
	s.mu.Unlock()
	if !ok || p.attempted {
		return
	}

	ctx := context.Background()
	s.send(ctx, channelID, "⌛ Verification timed out. Please try again later.")
	s.scheduleCleanup(channelID)
}

func (s *service) VerifyByCode(ctx context.Context, guildID, memberID, code string) error {
	if _, err := s.OTPs.Redeem(ctx, code); err != nil {
		return err
	}
	if err := s.Gateway.GrantRole(ctx, guildID, memberID, s.VerifiedRoleID); err != nil {
		return fmt.Errorf("grant verified role: %w", err)
	}
	return nil
}

// ResetAll strips the Verified role from every holder and asks each to
// re-verify. Returns how many members were reset. Per-member failures
// are logged and skipped so one refused DM cannot stall the sweep.
func (s *service) ResetAll(ctx context.Context, guildID string) (int, error) {
	members, err := s.Gateway.ListMembersWithRole(ctx, guildID, s.VerifiedRoleID)
	if err != nil {
		return 0, fmt.Errorf("list verified members: %w", err)
	}
	reset := 0
	for _, m := range members {
		if err := s.Gateway.RemoveRole(ctx, guildID, m.ID, s.VerifiedRoleID); err != nil {
			slog.Warn("could not remove verified role", "member_id", m.ID, "err", err)
			continue
		}
		reset++
		if err := s.Gateway.SendDirect(ctx, m.ID, "🔁 Please re-verify using your OTP."); err != nil {
			slog.Warn("could not DM reset notice", "member_id", m.ID, "err", err)
		}
	}
	return reset, nil
}

// notifyAdmins DMs every non-bot administrator the follow-up approval
// command. DMs are best-effort: admins with closed inboxes are logged
// and skipped, never fatal to the verification.
func (s *service) notifyAdmins(ctx context.Context, guildID, username string) {
	admins, err := s.Gateway.ListAdmins(ctx, guildID)
	if err != nil {
		slog.Warn("could not list admins for verification notice", "guild_id", guildID, "err", err)
		return
	}
	notice := fmt.Sprintf(
		"👤 User %s has been verified.\nPlease review and approve them using the command:\n%sapr %s",
		username, s.CommandPrefix, username,
	)
	for _, a := range admins {
		if err := s.Gateway.SendDirect(ctx, a.ID, notice); err != nil {
			slog.Warn("could not DM admin", "admin_id", a.ID, "err", err)
		}
	}
}

func (s *service) scheduleCleanup(channelID string) {
	s.mu.Lock()
	if p, ok := s.pending[channelID]; ok {
		p.timer.Stop()
		delete(s.pending, channelID)
	}
	s.mu.Unlock()

	time.AfterFunc(s.CleanupGrace, func() {
		if err := s.Gateway.DeleteChannel(context.Background(), channelID); err != nil {
			slog.Warn("could not delete challenge channel", "channel_id", channelID, "err", err)
		}
	})
}

func (s *service) send(ctx context.Context, channelID, text string) {
	if err := s.Gateway.SendMessage(ctx, channelID, text); err != nil {
		slog.Warn("could not send onboarding message", "channel_id", channelID, "err", err)
	}
}

const secretCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newSecretValue generates the 8-character shared secret members type
// during onboarding. Comparison is case-insensitive, so uppercase only.
func newSecretValue() (string, error) {
	b := make([]byte, 8)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(secretCharset))))
		if err != nil {
			return "", err
		}
		b[i] = secretCharset[idx.Int64()]
	}
	return string(b), nil
}

// channelName derives the challenge channel name from the member's
// username, keeping only characters the platform allows.
func channelName(username string) string {
	name := strings.ToLower("verify-" + username)
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

