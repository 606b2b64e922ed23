package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-guild-bot/internal/bot"
	"github.com/go-guild-bot/internal/domain"
)

// Bind translates gateway events into dispatcher events. Call before
// Open so no event is missed.
func (g *Gateway) Bind(d *bot.Dispatcher) {
	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.GuildID == "" {
			return
		}
		ev := bot.MessageEvent{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			Author:    asGuildMember(m.Author),
			Content:   m.Content,
			Mentions:  asGuildMembers(m.Mentions),
		}
		g.dispatch(d, ev)
	})

	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		g.dispatch(d, bot.MemberJoinEvent{
			GuildID: m.GuildID,
			Member:  asGuildMember(m.User),
		})
	})

	g.session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		inVoice := v.ChannelID != ""
		wasInVoice := v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != ""
		// Channel-to-channel moves keep the session running.
		if inVoice == wasInVoice {
			return
		}
		m, err := g.member(context.Background(), v.GuildID, v.UserID)
		if err != nil {
			slog.Warn("could not resolve voice member", "member_id", v.UserID, "err", err)
			return
		}
		g.dispatch(d, bot.VoiceEvent{
			GuildID: v.GuildID,
			Member:  asGuildMember(m.User),
			Joined:  inVoice,
			At:      time.Now(),
		})
	})
}

func (g *Gateway) dispatch(d *bot.Dispatcher, ev bot.Event) {
	if err := d.Dispatch(context.Background(), ev); err != nil {
		slog.Error("event handler failed", "kind", ev.Kind(), "err", err)
	}
}

func asGuildMembers(users []*discordgo.User) []domain.GuildMember {
	out := make([]domain.GuildMember, 0, len(users))
	for _, u := range users {
		out = append(out, asGuildMember(u))
	}
	return out
}
