package bot

import "github.com/Kp4103/Vibe/internal/music/player"

// Voice is what commands need from the running bot to drive playback.
type Voice interface {
	GetOrCreatePlayer(guildID string) *player.Player
	GetPlayer(guildID string) (*player.Player, bool)
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}
