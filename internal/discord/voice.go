package discord

import (
	"github.com/bwmarrin/discordgo"
)

// voiceSession adapts a discordgo voice connection to what the player
// expects from a voice channel.
type voiceSession struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceSession) OpusSend() chan<- []byte { return v.vc.OpusSend }

func (v *voiceSession) Speaking(b bool) error { return v.vc.Speaking(b) }

func (v *voiceSession) Disconnect() error { return v.vc.Disconnect() }
