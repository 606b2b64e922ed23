package bot

import (
	"context"
	"testing"
	"time"

	"github.com/go-guild-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockVerification struct{ mock.Mock }

func (m *mockVerification) StartOnboarding(ctx context.Context, guildID string, gm domain.GuildMember) error {
	return m.Called(ctx, guildID, gm).Error(0)
}
func (m *mockVerification) HandleChannelMessage(ctx context.Context, channelID, authorID, content string) (bool, error) {
	args := m.Called(ctx, channelID, authorID, content)
	return args.Bool(0), args.Error(1)
}
func (m *mockVerification) VerifyByCode(ctx context.Context, guildID, memberID, code string) error {
	return m.Called(ctx, guildID, memberID, code).Error(0)
}
func (m *mockVerification) ResetAll(ctx context.Context, guildID string) (int, error) {
	args := m.Called(ctx, guildID)
	return args.Int(0), args.Error(1)
}

type mockPoints struct{ mock.Mock }

func (m *mockPoints) HandleVoiceJoin(memberID string, at time.Time) {
	m.Called(memberID, at)
}
func (m *mockPoints) HandleVoiceLeave(ctx context.Context, guildID string, gm domain.GuildMember, at time.Time) error {
	return m.Called(ctx, guildID, gm, at).Error(0)
}
func (m *mockPoints) TickVoice(ctx context.Context, guildID string) error {
	return m.Called(ctx, guildID).Error(0)
}
func (m *mockPoints) ThankMention(ctx context.Context, guildID, channelID string, author domain.GuildMember, targets []domain.GuildMember) error {
	return m.Called(ctx, guildID, channelID, author, targets).Error(0)
}
func (m *mockPoints) ThankCommand(ctx context.Context, guildID, channelID string, author, target domain.GuildMember) error {
	return m.Called(ctx, guildID, channelID, author, target).Error(0)
}

type mockApproval struct{ mock.Mock }

func (m *mockApproval) Gate(ctx context.Context, guildID, channelID, messageID string, author domain.GuildMember) bool {
	return m.Called(ctx, guildID, channelID, messageID, author).Bool(0)
}
func (m *mockApproval) Approve(ctx context.Context, guildID, targetID string) error {
	return m.Called(ctx, guildID, targetID).Error(0)
}

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) Issue(ctx context.Context, subjectID string) (string, error) {
	args := m.Called(ctx, subjectID)
	return args.String(0), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) SendMessage(ctx context.Context, channelID, text string) error {
	return m.Called(ctx, channelID, text).Error(0)
}
func (m *mockGateway) SendDirect(ctx context.Context, userID, text string) error {
	return m.Called(ctx, userID, text).Error(0)
}
func (m *mockGateway) IsAdmin(ctx context.Context, guildID, memberID string) (bool, error) {
	args := m.Called(ctx, guildID, memberID)
	return args.Bool(0), args.Error(1)
}

// --- helpers ---

type fixture struct {
	verification *mockVerification
	points       *mockPoints
	approval     *mockApproval
	otps         *mockIssuer
	gw           *mockGateway
	d            *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		verification: new(mockVerification),
		points:       new(mockPoints),
		approval:     new(mockApproval),
		otps:         new(mockIssuer),
		gw:           new(mockGateway),
	}
	f.d = NewDispatcher(Deps{
		Verification:     f.verification,
		Points:           f.points,
		Approval:         f.approval,
		OTPs:             f.otps,
		Gateway:          f.gw,
		CommandPrefix:    "!",
		GeneralChannelID: "ch-general",
		AdminChannelID:   "ch-admin",
	})
	return f
}

func (f *fixture) notPending(channelID, authorID, content string) {
	f.verification.On("HandleChannelMessage", mock.Anything, channelID, authorID, content).
		Return(false, nil)
}

func dave() domain.GuildMember  { return domain.GuildMember{ID: "m1", Username: "Dave"} }
func frank() domain.GuildMember { return domain.GuildMember{ID: "m2", Username: "Frank"} }

// --- tests ---

func TestDispatch_MemberJoinStartsOnboarding(t *testing.T) {
	f := newFixture()
	f.verification.On("StartOnboarding", mock.Anything, "g1", dave()).Return(nil)

	require.NoError(t, f.d.Dispatch(context.Background(), MemberJoinEvent{GuildID: "g1", Member: dave()}))
	f.verification.AssertExpectations(t)
}

func TestDispatch_UnknownKindErrors(t *testing.T) {
	f := newFixture()
	err := f.d.Dispatch(context.Background(), bogusEvent{})
	assert.Error(t, err)
}

type bogusEvent struct{}

func (bogusEvent) Kind() EventKind { return "bogus" }

func TestMessage_BotAuthorIgnored(t *testing.T) {
	f := newFixture()
	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-x", Author: domain.GuildMember{ID: "b1", Bot: true}, Content: "hi"}

	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.verification.AssertNotCalled(t, "HandleChannelMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessage_OnboardingChannelOwnsMessage(t *testing.T) {
	f := newFixture()
	f.verification.On("HandleChannelMessage", mock.Anything, "ch-verify", "m1", "SECRET99").
		Return(true, nil)

	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-verify", Author: dave(), Content: "SECRET99"}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))

	f.approval.AssertNotCalled(t, "Gate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.points.AssertNotCalled(t, "ThankMention", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessage_GeneralGateBlocksEverything(t *testing.T) {
	f := newFixture()
	f.notPending("ch-general", "m1", "hey @Frank")
	f.approval.On("Gate", mock.Anything, "g1", "ch-general", "msg1", dave()).Return(false)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-general", MessageID: "msg1",
		Author: dave(), Content: "hey @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.points.AssertNotCalled(t, "ThankMention", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessage_GeneralMentionThanksAfterGate(t *testing.T) {
	f := newFixture()
	f.notPending("ch-general", "m1", "thanks @Frank!")
	f.approval.On("Gate", mock.Anything, "g1", "ch-general", "msg1", dave()).Return(true)
	f.points.On("ThankMention", mock.Anything, "g1", "ch-general", dave(), []domain.GuildMember{frank()}).
		Return(nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-general", MessageID: "msg1",
		Author: dave(), Content: "thanks @Frank!", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.points.AssertExpectations(t)
}

func TestMessage_MentionThanksOutsideGeneral(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "cheers @Frank")
	f.points.On("ThankMention", mock.Anything, "g1", "ch-x", dave(), []domain.GuildMember{frank()}).
		Return(nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-x", MessageID: "msg1",
		Author: dave(), Content: "cheers @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.points.AssertExpectations(t)
	f.approval.AssertNotCalled(t, "Gate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommand_Verify(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!verify 123456")
	f.verification.On("VerifyByCode", mock.Anything, "g1", "m1", "123456").Return(nil)
	f.gw.On("SendMessage", mock.Anything, "ch-x", "✅ You have been verified!").Return(nil)

	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-x", Author: dave(), Content: "!verify 123456"}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestCommand_VerifyBadCode(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!verify 000000")
	f.verification.On("VerifyByCode", mock.Anything, "g1", "m1", "000000").Return(domain.ErrNotFound)
	f.gw.On("SendMessage", mock.Anything, "ch-x", "Invalid or used OTP.").Return(nil)

	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-x", Author: dave(), Content: "!verify 000000"}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestCommand_GenOTP_AdminOnly(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!genotp @Frank")
	f.gw.On("IsAdmin", mock.Anything, "g1", "m1").Return(false, nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-x", Author: dave(),
		Content: "!genotp @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.otps.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestCommand_GenOTP_DeliversCode(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!genotp @Frank")
	f.gw.On("IsAdmin", mock.Anything, "g1", "m1").Return(true, nil)
	f.otps.On("Issue", mock.Anything, "m2").Return("482913", nil)
	f.gw.On("SendDirect", mock.Anything, "m2", "Your OTP code is: 482913").Return(nil)
	f.gw.On("SendMessage", mock.Anything, "ch-x", "OTP generated for Frank").Return(nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-x", Author: dave(),
		Content: "!genotp @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestCommand_ThanksNeedsMention(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!thanks")
	f.gw.On("SendMessage", mock.Anything, "ch-x", "Please mention someone to thank.").Return(nil)

	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-x", Author: dave(), Content: "!thanks"}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.points.AssertNotCalled(t, "ThankCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommand_ApproveOutsideAdminChannelIgnored(t *testing.T) {
	f := newFixture()
	f.notPending("ch-x", "m1", "!apr @Frank")

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-x", Author: dave(),
		Content: "!apr @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.approval.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "IsAdmin", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommand_ApproveUnverifiedTarget(t *testing.T) {
	f := newFixture()
	f.notPending("ch-admin", "m1", "!apr @Frank")
	f.gw.On("IsAdmin", mock.Anything, "g1", "m1").Return(true, nil)
	f.approval.On("Approve", mock.Anything, "g1", "m2").Return(domain.ErrPermissionDenied)
	f.gw.On("SendMessage", mock.Anything, "ch-admin", "🚫 That user is not Verified yet.").Return(nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-admin", Author: dave(),
		Content: "!apr @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestCommand_ApproveSuccess(t *testing.T) {
	f := newFixture()
	f.notPending("ch-admin", "m1", "!apr @Frank")
	f.gw.On("IsAdmin", mock.Anything, "g1", "m1").Return(true, nil)
	f.approval.On("Approve", mock.Anything, "g1", "m2").Return(nil)
	f.gw.On("SendMessage", mock.Anything, "ch-admin", "✅ Frank is now Approved.").Return(nil)

	ev := MessageEvent{
		GuildID: "g1", ChannelID: "ch-admin", Author: dave(),
		Content: "!apr @Frank", Mentions: []domain.GuildMember{frank()},
	}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestCommand_AuthReset(t *testing.T) {
	f := newFixture()
	f.notPending("ch-admin", "m1", "!authreset")
	f.gw.On("IsAdmin", mock.Anything, "g1", "m1").Return(true, nil)
	f.verification.On("ResetAll", mock.Anything, "g1").Return(7, nil)
	f.gw.On("SendMessage", mock.Anything, "ch-admin",
		"All users have been reset and must re-authenticate.").Return(nil)

	ev := MessageEvent{GuildID: "g1", ChannelID: "ch-admin", Author: dave(), Content: "!authreset"}
	require.NoError(t, f.d.Dispatch(context.Background(), ev))
	f.gw.AssertExpectations(t)
}

func TestVoice_JoinAndLeaveRouted(t *testing.T) {
	f := newFixture()
	at := time.Now()
	f.points.On("HandleVoiceJoin", "m1", at).Return()
	f.points.On("HandleVoiceLeave", mock.Anything, "g1", dave(), at).Return(nil)

	require.NoError(t, f.d.Dispatch(context.Background(), VoiceEvent{GuildID: "g1", Member: dave(), Joined: true, At: at}))
	require.NoError(t, f.d.Dispatch(context.Background(), VoiceEvent{GuildID: "g1", Member: dave(), Joined: false, At: at}))
	f.points.AssertExpectations(t)
}

func TestVoice_BotIgnored(t *testing.T) {
	f := newFixture()
	bot := domain.GuildMember{ID: "b1", Bot: true}
	require.NoError(t, f.d.Dispatch(context.Background(), VoiceEvent{GuildID: "g1", Member: bot, Joined: true, At: time.Now()}))
	f.points.AssertNotCalled(t, "HandleVoiceJoin", mock.Anything, mock.Anything)
}

func TestTick_Routed(t *testing.T) {
	f := newFixture()
	f.points.On("TickVoice", mock.Anything, "g1").Return(nil)
	require.NoError(t, f.d.Dispatch(context.Background(), TickEvent{GuildID: "g1"}))
	f.points.AssertExpectations(t)
}
