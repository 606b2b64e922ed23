// Package bot turns gateway events into service calls. Events arrive
// through an explicit dispatch table keyed by event kind, so handlers
// are plain functions testable without a live gateway connection.
package bot

import (
	"time"

	"github.com/go-guild-bot/internal/domain"
)

type EventKind string

const (
	KindMemberJoin EventKind = "member_join"
	KindMessage    EventKind = "message"
	KindVoice      EventKind = "voice_state"
	KindTick       EventKind = "tick"
)

// Event is anything the dispatcher can route.
type Event interface {
	Kind() EventKind
}

// MemberJoinEvent fires when a member enters the guild.
type MemberJoinEvent struct {
	GuildID string
	Member  domain.GuildMember
}

func (MemberJoinEvent) Kind() EventKind { return KindMemberJoin }

// MessageEvent is one guild message with its resolved mentions.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    domain.GuildMember
	Content   string
	Mentions  []domain.GuildMember
}

func (MessageEvent) Kind() EventKind { return KindMessage }

// VoiceEvent marks a member entering (Joined) or leaving a voice channel.
type VoiceEvent struct {
	GuildID string
	Member  domain.GuildMember
	Joined  bool
	At      time.Time
}

func (VoiceEvent) Kind() EventKind { return KindVoice }

// TickEvent fires on the periodic voice-point interval.
type TickEvent struct {
	GuildID string
}

func (TickEvent) Kind() EventKind { return KindTick }
