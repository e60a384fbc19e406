package discord

import (
	"context"
	"fmt"

	"github.com/Kp4103/Vibe/internal/bot"
	"github.com/Kp4103/Vibe/internal/music/player"
	"github.com/Kp4103/Vibe/internal/music/stream"
)

// newPlayerFactory wires the tiered stream opener and the Discord voice
// session into per-guild players.
func (b *Bot) newPlayerFactory() func(guildID string) *player.Player {
	direct := stream.Chain(b.youtube.OpenBestFormat, b.youtube.OpenLowestQuality)
	open := stream.Chain(
		b.youtube.OpenBestFormat,
		b.youtube.OpenLowestQuality,
		stream.Alternatives(b.search, b.limiter, direct),
	)

	return func(guildID string) *player.Player {
		return player.New(player.Config{
			GuildID: guildID,
			Open:    open,
			Play: func(ctx context.Context, opened *stream.Opened, send chan<- []byte, ctrl *stream.Controls) error {
				return stream.PlayPCM(ctx, opened.PCM, send, ctrl)
			},
			Join:   b.joinVoice,
			Logger: b.log.With().Str("guild_id", guildID).Logger(),
		})
	}
}

func (b *Bot) joinVoice(guildID, channelID string) (player.VoiceSession, error) {
	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return &voiceSession{vc: vc}, nil
}

// GetOrCreatePlayer returns the guild's player, creating one when absent.
func (b *Bot) GetOrCreatePlayer(guildID string) *player.Player {
	return b.players.GetOrCreate(guildID)
}

// GetPlayer returns the guild's player without creating one.
func (b *Bot) GetPlayer(guildID string) (*player.Player, bool) {
	return b.players.Get(guildID)
}

// FindUserVoiceState reports which voice channel a user currently occupies.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("retrieve guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return &bot.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, fmt.Errorf("user is not in a voice channel")
}
