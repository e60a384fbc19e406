package music

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Kp4103/Vibe/internal/bot"
	"github.com/Kp4103/Vibe/internal/command"
	"github.com/Kp4103/Vibe/internal/music/resolver"
)

// Command is the /music slash command. All playback control lives under its
// subcommands.
type Command struct {
	Bot      bot.Voice
	Resolver *resolver.Resolver
}

func (c *Command) Name() string        { return "music" }
func (c *Command) Description() string { return "Play and control music in your voice channel" }

func (c *Command) SlashDefinition() *discordgo.ApplicationCommand {
	var volMin float64 = 1
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue a track by link or search query",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "YouTube link, Spotify track link, or search text",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume a paused track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next queued track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue and recently played tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "percent",
						Description: "Volume between 1 and 100",
						Required:    true,
						MinValue:    &volMin,
						MaxValue:    100,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "quality",
				Description: "Show the audio format of the current stream",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ping",
				Description: "Show gateway latency",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "help",
				Description: "List music subcommands",
			},
		},
	}
}

func (c *Command) Run(ctx *command.SlashContext) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return bot.RespondEmbedEphemeral(ctx.Session, ctx.Event, bot.NewEmbed().
			SetDescription("Missing subcommand.").MessageEmbed)
	}

	sub := data.Options[0]
	switch sub.Name {
	case "play":
		var input string
		for _, opt := range sub.Options {
			if opt.Name == "input" {
				input = opt.StringValue()
			}
		}
		return c.runPlay(ctx, input)
	case "pause":
		return c.runPause(ctx)
	case "resume":
		return c.runResume(ctx)
	case "skip":
		return c.runSkip(ctx)
	case "stop":
		return c.runStop(ctx)
	case "queue":
		return c.runQueue(ctx)
	case "volume":
		var percent int
		for _, opt := range sub.Options {
			if opt.Name == "percent" {
				percent = int(opt.IntValue())
			}
		}
		return c.runVolume(ctx, percent)
	case "nowplaying":
		return c.runNowPlaying(ctx)
	case "quality":
		return c.runQuality(ctx)
	case "ping":
		return c.runPing(ctx)
	case "help":
		return c.runHelp(ctx)
	default:
		return bot.RespondEmbedEphemeral(ctx.Session, ctx.Event, bot.NewEmbed().
			SetDescription(fmt.Sprintf("Unknown subcommand: %s", sub.Name)).MessageEmbed)
	}
}
