package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Kp4103/Vibe/internal/bot"
	"github.com/Kp4103/Vibe/internal/command"
	"github.com/Kp4103/Vibe/internal/music/player"
	"github.com/Kp4103/Vibe/internal/music/resolver"
	"github.com/Kp4103/Vibe/internal/music/track"
)

const resolveTimeout = 30 * time.Second

func (c *Command) runPlay(ctx *command.SlashContext, input string) error {
	s, e := ctx.Session, ctx.Event

	if strings.TrimSpace(input) == "" {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetTitle("🎵 Error").
			SetDescription("Input is required.").MessageEmbed)
	}

	voiceState, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetTitle("🎵 Voice Error").
			SetDescription("Join a voice channel first.").MessageEmbed)
	}

	// resolution can take a while, acknowledge now and follow up
	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("defer response: %w", err)
	}

	p := c.Bot.GetOrCreatePlayer(e.GuildID)
	gen := p.Generation()

	rctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	item, err := c.Resolver.Resolve(rctx, input)
	if err != nil {
		return bot.FollowupEmbedEphemeral(s, e, bot.NewEmbed().
			SetTitle("🎵 Error").
			SetDescription(resolveErrorMessage(err)).MessageEmbed)
	}

	// subscribed before the enqueue so this invocation's Added signal
	// cannot fire before anyone is listening
	signals := p.Subscribe()

	if !p.EnqueueResolved(gen, item) {
		// playback was stopped while we were resolving
		p.Unsubscribe(signals)
		return bot.FollowupEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Playback was stopped, the track was not queued.").MessageEmbed)
	}

	listenPlayerStatus(s, e, p, signals, item)
	p.Start(voiceState.ChannelID)
	return nil
}

func resolveErrorMessage(err error) string {
	switch {
	case errors.Is(err, resolver.ErrMalformedLink):
		return "That link is not recognized."
	case errors.Is(err, resolver.ErrLiveContent):
		return "Live broadcasts cannot be queued."
	case errors.Is(err, resolver.ErrNoResult):
		return "Nothing suitable found for that query."
	case errors.Is(err, resolver.ErrUpstream):
		return "The media service is not responding, try again later."
	default:
		return fmt.Sprintf("Failed to resolve track: %v", err)
	}
}

// listenPlayerStatus relays the first player signal concerning the queued
// item back to the interaction as a followup. Signals for other tracks
// (from concurrent invocations) are ignored.
func listenPlayerStatus(s *discordgo.Session, e *discordgo.InteractionCreate, p *player.Player, signals chan player.Signal, item track.Item) {
	go func() {
		defer p.Unsubscribe(signals)
		timeout := time.After(time.Minute)
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Requested.SourceURL != item.SourceURL {
					continue
				}
				switch sig.Status {
				case player.StatusPlaying:
					_ = bot.FollowupEmbed(s, e, bot.NewEmbed().
						SetTitle("▶️ Now Playing").
						SetDescription(trackLine(sig.Item)).MessageEmbed)
					return
				case player.StatusAdded:
					_ = bot.FollowupEmbed(s, e, bot.NewEmbed().
						SetTitle("🎵 Track Added").
						SetDescription("Added to the queue: "+trackLine(sig.Item)).MessageEmbed)
					return
				case player.StatusError:
					_ = bot.FollowupEmbedEphemeral(s, e, bot.NewEmbed().
						SetTitle("⚠️ Playback Error").
						SetDescription("The track could not be played.").MessageEmbed)
					return
				}
			case <-timeout:
				return
			}
		}
	}()
}

func trackLine(t track.Item) string {
	title := t.String()
	if t.SourceURL != "" {
		return fmt.Sprintf("[%s](%s)", title, t.SourceURL)
	}
	return title
}

func (c *Command) runPause(ctx *command.SlashContext) error {
	return c.controlPlayback(ctx, "⏸️ Paused", func(p *player.Player) error { return p.Pause() })
}

func (c *Command) runResume(ctx *command.SlashContext) error {
	return c.controlPlayback(ctx, "▶️ Resumed", func(p *player.Player) error { return p.Resume() })
}

func (c *Command) runSkip(ctx *command.SlashContext) error {
	return c.controlPlayback(ctx, "⏭️ Skipped", func(p *player.Player) error { return p.Skip() })
}

// controlPlayback runs a player action and reports the outcome, mapping the
// player's sentinel errors to user-facing notices.
func (c *Command) controlPlayback(ctx *command.SlashContext, okTitle string, action func(*player.Player) error) error {
	s, e := ctx.Session, ctx.Event

	p, ok := c.Bot.GetPlayer(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	}

	switch err := action(p); {
	case err == nil:
		return bot.RespondEmbed(s, e, bot.NewEmbed().SetTitle(okTitle).MessageEmbed)
	case errors.Is(err, player.ErrNothingPlaying):
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	case errors.Is(err, player.ErrNothingToSkip):
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("No tracks queued behind the current one.").MessageEmbed)
	default:
		return err
	}
}

func (c *Command) runStop(ctx *command.SlashContext) error {
	s, e := ctx.Session, ctx.Event

	p, ok := c.Bot.GetPlayer(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	}

	p.Stop()
	return bot.RespondEmbed(s, e, bot.NewEmbed().
		SetDescription("⏹️ Playback stopped, queue cleared.").MessageEmbed)
}

func (c *Command) runQueue(ctx *command.SlashContext) error {
	s, e := ctx.Session, ctx.Event

	p, ok := c.Bot.GetPlayer(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("The queue is empty.").MessageEmbed)
	}

	items := p.Queue()
	eb := bot.NewEmbed().SetTitle("🎶 Queue")

	if len(items) == 0 {
		eb.SetDescription("The queue is empty.")
	} else {
		var sb strings.Builder
		for i, it := range items {
			marker := fmt.Sprintf("%d.", i+1)
			if i == 0 && p.State() == player.StateStreaming {
				marker = "▶️"
			}
			fmt.Fprintf(&sb, "%s %s\n", marker, trackLine(it))
		}
		eb.SetDescription(sb.String())
	}

	if hist := p.History(); len(hist) > 0 {
		const tail = 5
		if len(hist) > tail {
			hist = hist[len(hist)-tail:]
		}
		lines := make([]string, 0, len(hist))
		for _, it := range hist {
			lines = append(lines, trackLine(it))
		}
		eb.AddField("Recently played", strings.Join(lines, "\n"))
	}

	return bot.RespondEmbed(s, e, eb.MessageEmbed)
}

func (c *Command) runVolume(ctx *command.SlashContext, percent int) error {
	s, e := ctx.Session, ctx.Event

	p := c.Bot.GetOrCreatePlayer(e.GuildID)
	if err := p.SetVolume(percent); err != nil {
		if errors.Is(err, player.ErrInvalidVolume) {
			return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
				SetDescription("Volume must be between 1 and 100.").MessageEmbed)
		}
		return err
	}

	return bot.RespondEmbed(s, e, bot.NewEmbed().
		SetDescription(fmt.Sprintf("🔊 Volume set to %d%%.", percent)).MessageEmbed)
}

func (c *Command) runNowPlaying(ctx *command.SlashContext) error {
	s, e := ctx.Session, ctx.Event

	p, ok := c.Bot.GetPlayer(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	}
	now, found := p.NowPlaying()
	if !found {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	}

	eb := bot.NewEmbed().
		SetTitle("▶️ Now Playing").
		SetDescription(trackLine(now))
	if now.Thumbnail != "" {
		eb.SetThumbnail(now.Thumbnail)
	}
	if now.Duration > 0 {
		eb.AddField("Duration", now.Duration.Round(time.Second).String())
	}
	state := fmt.Sprintf("Volume %d%%", p.Volume())
	if p.Paused() {
		state += ", paused"
	}
	eb.AddField("Playback", state)

	return bot.RespondEmbed(s, e, eb.MessageEmbed)
}

func (c *Command) runQuality(ctx *command.SlashContext) error {
	s, e := ctx.Session, ctx.Event

	p, ok := c.Bot.GetPlayer(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("Nothing is playing.").MessageEmbed)
	}
	q, found := p.Quality()
	if !found || !q.Known() {
		return bot.RespondEmbedEphemeral(s, e, bot.NewEmbed().
			SetDescription("No stream quality information available.").MessageEmbed)
	}

	return bot.RespondEmbed(s, e, bot.NewEmbed().
		SetTitle("🎚️ Stream Quality").
		SetDescription(fmt.Sprintf("%s in %s at ~%d kbps", q.Codec, q.Container, q.BitrateKbps)).MessageEmbed)
}

func (c *Command) runPing(ctx *command.SlashContext) error {
	latency := ctx.Session.HeartbeatLatency().Round(time.Millisecond)
	voice := "not connected to voice"
	if p, ok := c.Bot.GetPlayer(ctx.Event.GuildID); ok && p.Connected() {
		voice = fmt.Sprintf("voice connected, player %s", p.State())
	}
	return bot.RespondEmbed(ctx.Session, ctx.Event, bot.NewEmbed().
		SetDescription(fmt.Sprintf("🏓 Pong, gateway latency %s, %s.", latency, voice)).MessageEmbed)
}

func (c *Command) runHelp(ctx *command.SlashContext) error {
	eb := bot.NewEmbed().SetTitle("🎵 Music Commands")
	for _, line := range []struct{ name, desc string }{
		{"play", "Queue a track by link or search query"},
		{"pause", "Pause the current track"},
		{"resume", "Resume a paused track"},
		{"skip", "Skip to the next queued track"},
		{"stop", "Stop playback and clear the queue"},
		{"queue", "Show the queue and recently played tracks"},
		{"volume", "Set playback volume (1-100)"},
		{"nowplaying", "Show the current track"},
		{"quality", "Show the audio format of the current stream"},
		{"ping", "Show gateway latency"},
	} {
		eb.AddField("/music "+line.name, line.desc)
	}
	return bot.RespondEmbedEphemeral(ctx.Session, ctx.Event, eb.MessageEmbed)
}
