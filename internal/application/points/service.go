package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-guild-bot/internal/domain"
	"github.com/go-guild-bot/internal/pkg/cooldown"
	"github.com/go-guild-bot/internal/pkg/voicetrack"
	"golang.org/x/sync/errgroup"
)

// MemberStore persists per-member point records.
type MemberStore interface {
	Get(ctx context.Context, guildID, memberID string) (*domain.MemberRecord, error)
	Save(ctx context.Context, rec *domain.MemberRecord) error
}

// Gateway is the slice of the chat gateway the point engine needs.
type Gateway interface {
	SendMessage(ctx context.Context, channelID, text string) error
	SendDirect(ctx context.Context, userID, text string) error
	SetNickname(ctx context.Context, guildID, memberID, nick string) error
	ListVoiceMembers(ctx context.Context, guildID string) ([]domain.GuildMember, error)
}

// Service accrues points from voice presence, mentions and thanks,
// advances levels, and keeps display names in sync.
type Service interface {
	AddPoints(ctx context.Context, guildID string, m domain.GuildMember, amount int) error
	HandleVoiceJoin(memberID string, at time.Time)
	HandleVoiceLeave(ctx context.Context, guildID string, m domain.GuildMember, at time.Time) error
	TickVoice(ctx context.Context, guildID string) error
	ThankMention(ctx context.Context, guildID, channelID string, author domain.GuildMember, targets []domain.GuildMember) error
	ThankCommand(ctx context.Context, guildID, channelID string, author, target domain.GuildMember) error
}

type ServiceDeps struct {
	Gateway         Gateway
	Members         MemberStore
	Levels          domain.LevelTable
	ThanksPoints    int
	VoicePointEvery time.Duration
	NickMaxLen      int
	ThanksCooldown  time.Duration
	MentionCooldown time.Duration
}

type service struct {
	ServiceDeps

	voice     *voicetrack.Tracker
	thanksCD  *cooldown.Cooldown
	mentionCD *cooldown.Cooldown
}

func NewService(deps ServiceDeps) Service {
	return &service{
		ServiceDeps: deps,
		voice:       voicetrack.New(),
		thanksCD:    cooldown.NewCooldown(deps.ThanksCooldown),
		mentionCD:   cooldown.NewCooldown(deps.MentionCooldown),
	}
}

// tickFanOutLimit bounds concurrent record writes during a voice tick so
// a large guild cannot starve the event loop or hammer the store.
const tickFanOutLimit = 8

// maxSaveRetries bounds the optimistic-concurrency retry loop. Three
// concurrent award sources exist (tick, leave, thanks), so three tries
// is enough in practice.
const maxSaveRetries = 3

// AddPoints loads (or lazily creates) the member record, adds amount,
// advances at most one level when the threshold is crossed, and saves
// with an optimistic retry on version conflicts. Bot accounts never
// earn points.
func (s *service) AddPoints(ctx context.Context, guildID string, m domain.GuildMember, amount int) error {
	if m.Bot || amount <= 0 {
		return nil
	}

	var rec *domain.MemberRecord
	leveledTo := -1
	for attempt := 1; ; attempt++ {
		var err error
		rec, err = s.Members.Get(ctx, guildID, m.ID)
		if errors.Is(err, domain.ErrNotFound) {
			rec = &domain.MemberRecord{GuildID: guildID, MemberID: m.ID, CreatedAt: time.Now().UTC()}
		} else if err != nil {
			return fmt.Errorf("load member record: %w", err)
		}

		rec.Username = m.Username
		rec.Points += amount
		leveledTo = -1
		if rec.Points >= s.Levels[rec.Level].Threshold {
			rec.Points = 0
			if rec.Level < s.Levels.MaxLevel() {
				rec.Level++
			}
			leveledTo = rec.Level
		}
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()

		err = s.Members.Save(ctx, rec)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < maxSaveRetries {
			continue
		}
		return fmt.Errorf("save member record: %w", err)
	}

	if leveledTo >= 0 {
		notice := fmt.Sprintf("🎉 You earned the title: %s", s.Levels[leveledTo].Name)
		if err := s.Gateway.SendDirect(ctx, m.ID, notice); err != nil {
			slog.Warn("could not DM level-up notice", "member_id", m.ID, "err", err)
		}
	}

	s.refreshNickname(ctx, guildID, rec)
	return nil
}

// refreshNickname rewrites the member's display name from the record.
// Failures (missing permission, owner account) are logged, never retried.
func (s *service) refreshNickname(ctx context.Context, guildID string, rec *domain.MemberRecord) {
	l := s.Levels[rec.Level]
	nick := fmt.Sprintf("%s [%s] %d/%d", rec.Username, strings.ToUpper(l.Name), rec.Points, l.Threshold)
	if r := []rune(nick); len(r) > s.NickMaxLen {
		nick = string(r[:s.NickMaxLen])
	}
	if err := s.Gateway.SetNickname(ctx, guildID, rec.MemberID, nick); err != nil {
		slog.Warn("could not set nickname", "member_id", rec.MemberID, "err", err)
	}
}

func (s *service) HandleVoiceJoin(memberID string, at time.Time) {
	s.voice.Join(memberID, at)
}

// HandleVoiceLeave closes the member's voice session and awards one point
// per full interval spent in it. The lump sum overlaps with points the
// periodic tick already granted for the same session; that overlap is
// intentional and kept.
func (s *service) HandleVoiceLeave(ctx context.Context, guildID string, m domain.GuildMember, at time.Time) error {
	elapsed, ok := s.voice.Leave(m.ID, at)
	if !ok {
		return nil
	}
	pts := int(elapsed / s.VoicePointEvery)
	if pts <= 0 {
		return nil
	}
	return s.AddPoints(ctx, guildID, m, pts)
}

// TickVoice awards one point to every non-bot member currently in a
// voice channel. Awards fan out with bounded concurrency; a single
// failed award is logged and never fails the tick.
func (s *service) TickVoice(ctx context.Context, guildID string) error {
	members, err := s.Gateway.ListVoiceMembers(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list voice members: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tickFanOutLimit)
	for _, m := range members {
		if m.Bot {
			continue
		}
		m := m
		g.Go(func() error {
			if err := s.AddPoints(ctx, guildID, m, 1); err != nil {
				slog.Warn("voice tick award failed", "member_id", m.ID, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ThankMention awards points to each non-bot member mentioned in a
// regular message, at most once per cooldown window per (guild, target).
func (s *service) ThankMention(ctx context.Context, guildID, channelID string, author domain.GuildMember, targets []domain.GuildMember) error {
	for _, t := range targets {
		if t.Bot || t.ID == author.ID {
			continue
		}
		if !s.mentionCD.Allow(guildID+"-"+t.ID, time.Now()) {
			continue
		}
		if err := s.AddPoints(ctx, guildID, t, s.ThanksPoints); err != nil {
			slog.Warn("mention thanks award failed", "member_id", t.ID, "err", err)
			continue
		}
		s.say(ctx, channelID, fmt.Sprintf("👍 %s has been thanked!", t.Username))
	}
	return nil
}

// ThankCommand handles the explicit thanks command. The cooldown is per
// author here, unlike mention thanks which is per target.
func (s *service) ThankCommand(ctx context.Context, guildID, channelID string, author, target domain.GuildMember) error {
	if target.ID == author.ID {
		s.say(ctx, channelID, "You can't thank yourself!")
		return nil
	}
	if target.Bot {
		return nil
	}
	if !s.thanksCD.Allow(author.ID, time.Now()) {
		s.say(ctx, channelID, "You need to wait before thanking again.")
		return nil
	}
	if err := s.AddPoints(ctx, guildID, target, s.ThanksPoints); err != nil {
		return err
	}
	s.say(ctx, channelID, fmt.Sprintf("👍 %s has been thanked!", target.Username))
	return nil
}

func (s *service) say(ctx context.Context, channelID, text string) {
	if err := s.Gateway.SendMessage(ctx, channelID, text); err != nil {
		slog.Warn("could not send message", "channel_id", channelID, "err", err)
	}
}
