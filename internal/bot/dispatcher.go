package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Handler processes one dispatched event.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes events to handlers through an explicit table.
type Dispatcher struct {
	deps  Deps
	table map[EventKind]Handler
}

func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{deps: deps}
	d.table = map[EventKind]Handler{
		KindMemberJoin: d.onMemberJoin,
		KindMessage:    d.onMessage,
		KindVoice:      d.onVoice,
		KindTick:       d.onTick,
	}
	return d
}

// Dispatch routes ev to its handler. Unknown kinds are an error so a
// wiring mistake surfaces immediately instead of dropping events.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	h, ok := d.table[ev.Kind()]
	if !ok {
		return fmt.Errorf("no handler for event kind %q", ev.Kind())
	}
	return h(ctx, ev)
}

func (d *Dispatcher) onMemberJoin(ctx context.Context, ev Event) error {
	e := ev.(MemberJoinEvent)
	return d.deps.Verification.StartOnboarding(ctx, e.GuildID, e.Member)
}

// onMessage is the single entry point for guild messages. Order matters:
// a pending onboarding channel owns its messages outright; the general
// channel is gated before anything else looks at the message; commands
// and mention thanks apply elsewhere.
func (d *Dispatcher) onMessage(ctx context.Context, ev Event) error {
	e := ev.(MessageEvent)
	if e.Author.Bot {
		return nil
	}

	handled, err := d.deps.Verification.HandleChannelMessage(ctx, e.ChannelID, e.Author.ID, e.Content)
	if handled || err != nil {
		return err
	}

	if e.ChannelID == d.deps.GeneralChannelID {
		if !d.deps.Approval.Gate(ctx, e.GuildID, e.ChannelID, e.MessageID, e.Author) {
			return nil
		}
		if len(e.Mentions) > 0 && !strings.HasPrefix(e.Content, d.deps.CommandPrefix) {
			return d.deps.Points.ThankMention(ctx, e.GuildID, e.ChannelID, e.Author, e.Mentions)
		}
		return nil
	}

	if strings.HasPrefix(e.Content, d.deps.CommandPrefix) {
		return d.onCommand(ctx, e)
	}
	if len(e.Mentions) > 0 {
		return d.deps.Points.ThankMention(ctx, e.GuildID, e.ChannelID, e.Author, e.Mentions)
	}
	return nil
}

func (d *Dispatcher) onVoice(ctx context.Context, ev Event) error {
	e := ev.(VoiceEvent)
	if e.Member.Bot {
		return nil
	}
	if e.Joined {
		d.deps.Points.HandleVoiceJoin(e.Member.ID, e.At)
		return nil
	}
	return d.deps.Points.HandleVoiceLeave(ctx, e.GuildID, e.Member, e.At)
}

func (d *Dispatcher) onTick(ctx context.Context, ev Event) error {
	e := ev.(TickEvent)
	return d.deps.Points.TickVoice(ctx, e.GuildID)
}

func (d *Dispatcher) reply(ctx context.Context, channelID, text string) {
	if err := d.deps.Gateway.SendMessage(ctx, channelID, text); err != nil {
		slog.Warn("could not send reply", "channel_id", channelID, "err", err)
	}
}
