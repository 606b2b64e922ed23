// Package discord adapts the discordgo session to the narrow gateway
// interfaces the application services consume.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/go-guild-bot/internal/domain"
)

// Gateway wraps a discordgo session. One instance serves a single
// configured guild.
type Gateway struct {
	session *discordgo.Session
}

func New(token string) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	return &Gateway{session: session}, nil
}

// Open connects to the gateway. Event handlers must be bound first.
func (g *Gateway) Open() error  { return g.session.Open() }
func (g *Gateway) Close() error { return g.session.Close() }

func (g *Gateway) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := g.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return nil
}

// SendDirect DMs a user. Closed inboxes surface as ErrDelivery so
// callers can treat them as best-effort.
func (g *Gateway) SendDirect(ctx context.Context, userID, text string) error {
	ch, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: open dm with %s: %v", domain.ErrDelivery, userID, err)
	}
	if _, err := g.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: dm %s: %v", domain.ErrDelivery, userID, err)
	}
	return nil
}

// CreatePrivateChannel creates a text channel visible only to the
// member and the bot (staff see it through the administrator bypass).
func (g *Gateway) CreatePrivateChannel(ctx context.Context, guildID, memberID, name string) (string, error) {
	const memberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory

	overwrites := []*discordgo.PermissionOverwrite{
		{
			// @everyone shares its id with the guild.
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    memberID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow,
		},
		{
			ID:    g.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow | discordgo.PermissionManageChannels,
		},
	}

	ch, err := g.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.session.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("grant role %s to %s: %w", roleID, memberID, err)
	}
	return nil
}

func (g *Gateway) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.session.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, memberID, err)
	}
	return nil
}

func (g *Gateway) SetNickname(ctx context.Context, guildID, memberID, nick string) error {
	if err := g.session.GuildMemberNickname(guildID, memberID, nick, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("set nickname for %s: %w", memberID, err)
	}
	return nil
}

func (g *Gateway) HasRole(ctx context.Context, guildID, memberID, roleID string) (bool, error) {
	m, err := g.member(ctx, guildID, memberID)
	if err != nil {
		return false, err
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// IsAdmin reports whether any of the member's roles carries the
// administrator permission.
func (g *Gateway) IsAdmin(ctx context.Context, guildID, memberID string) (bool, error) {
	m, err := g.member(ctx, guildID, memberID)
	if err != nil {
		return false, err
	}
	adminRoles, err := g.adminRoleSet(ctx, guildID)
	if err != nil {
		return false, err
	}
	for _, r := range m.Roles {
		if adminRoles[r] {
			return true, nil
		}
	}
	return false, nil
}

// ListAdmins returns every non-bot member holding an administrator role.
func (g *Gateway) ListAdmins(ctx context.Context, guildID string) ([]domain.GuildMember, error) {
	adminRoles, err := g.adminRoleSet(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var admins []domain.GuildMember
	err = g.eachMember(ctx, guildID, func(m *discordgo.Member) {
		if m.User.Bot {
			return
		}
		for _, r := range m.Roles {
			if adminRoles[r] {
				admins = append(admins, asGuildMember(m.User))
				return
			}
		}
	})
	return admins, err
}

func (g *Gateway) ListMembersWithRole(ctx context.Context, guildID, roleID string) ([]domain.GuildMember, error) {
	var holders []domain.GuildMember
	err := g.eachMember(ctx, guildID, func(m *discordgo.Member) {
		if m.User.Bot {
			return
		}
		for _, r := range m.Roles {
			if r == roleID {
				holders = append(holders, asGuildMember(m.User))
				return
			}
		}
	})
	return holders, err
}

// ListVoiceMembers returns every member currently in a voice channel,
// from the session's state cache.
func (g *Gateway) ListVoiceMembers(ctx context.Context, guildID string) ([]domain.GuildMember, error) {
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	var connected []domain.GuildMember
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		m, err := g.member(ctx, guildID, vs.UserID)
		if err != nil {
			continue
		}
		connected = append(connected, asGuildMember(m.User))
	}
	return connected, nil
}

// ResolveRole maps a role name to its id, for configs that only name
// the role.
func (g *Gateway) ResolveRole(ctx context.Context, guildID, name string) (string, error) {
	roles, err := g.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("role %q: %w", name, domain.ErrNotFound)
}

func (g *Gateway) ResolveChannel(ctx context.Context, guildID, name string) (string, error) {
	channels, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("channel %q: %w", name, domain.ErrNotFound)
}

// member prefers the state cache and falls back to the REST API.
func (g *Gateway) member(ctx context.Context, guildID, memberID string) (*discordgo.Member, error) {
	if m, err := g.session.State.Member(guildID, memberID); err == nil {
		return m, nil
	}
	m, err := g.session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", memberID, err)
	}
	return m, nil
}

func (g *Gateway) adminRoleSet(ctx context.Context, guildID string) (map[string]bool, error) {
	roles, err := g.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	set := make(map[string]bool)
	for _, r := range roles {
		if r.Permissions&discordgo.PermissionAdministrator != 0 {
			set[r.ID] = true
		}
	}
	return set, nil
}

// eachMember pages through the guild membership, 1000 at a time.
func (g *Gateway) eachMember(ctx context.Context, guildID string, fn func(*discordgo.Member)) error {
	after := ""
	for {
		page, err := g.session.GuildMembers(guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		for _, m := range page {
			fn(m)
		}
		if len(page) < 1000 {
			return nil
		}
		after = page[len(page)-1].User.ID
	}
}

func asGuildMember(u *discordgo.User) domain.GuildMember {
	return domain.GuildMember{ID: u.ID, Username: u.Username, Bot: u.Bot}
}
