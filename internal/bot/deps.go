package bot

import (
	"context"
	"time"

	"github.com/go-guild-bot/internal/domain"
)

// VerificationService drives onboarding and OTP redemption.
type VerificationService interface {
	StartOnboarding(ctx context.Context, guildID string, m domain.GuildMember) error
	HandleChannelMessage(ctx context.Context, channelID, authorID, content string) (bool, error)
	VerifyByCode(ctx context.Context, guildID, memberID, code string) error
	ResetAll(ctx context.Context, guildID string) (int, error)
}

// PointsService accrues points and maintains display names.
type PointsService interface {
	HandleVoiceJoin(memberID string, at time.Time)
	HandleVoiceLeave(ctx context.Context, guildID string, m domain.GuildMember, at time.Time) error
	TickVoice(ctx context.Context, guildID string) error
	ThankMention(ctx context.Context, guildID, channelID string, author domain.GuildMember, targets []domain.GuildMember) error
	ThankCommand(ctx context.Context, guildID, channelID string, author, target domain.GuildMember) error
}

// ApprovalService guards the general channel and promotes members.
type ApprovalService interface {
	Gate(ctx context.Context, guildID, channelID, messageID string, author domain.GuildMember) bool
	Approve(ctx context.Context, guildID, targetID string) error
}

// OTPIssuer mints one-time codes for out-of-band delivery.
type OTPIssuer interface {
	Issue(ctx context.Context, subjectID string) (string, error)
}

// Gateway is the slice of the chat gateway the dispatcher itself needs.
type Gateway interface {
	SendMessage(ctx context.Context, channelID, text string) error
	SendDirect(ctx context.Context, userID, text string) error
	IsAdmin(ctx context.Context, guildID, memberID string) (bool, error)
}

type Deps struct {
	Verification VerificationService
	Points       PointsService
	Approval     ApprovalService
	OTPs         OTPIssuer
	Gateway      Gateway

	CommandPrefix    string
	GeneralChannelID string
	AdminChannelID   string
}
