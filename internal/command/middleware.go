package command

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Kp4103/Vibe/internal/bot"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx *SlashContext) error
}

func (w *wrappedCommand) Run(ctx *SlashContext) error {
	return w.wrap(ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return w.Command.SlashDefinition()
}

// WithGuildOnly rejects invocations outside a guild with an ephemeral notice.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *SlashContext) error {
				if ctx.Event.GuildID == "" {
					return bot.RespondEmbedEphemeral(ctx.Session, ctx.Event, bot.NewEmbed().
						SetDescription("This command only works in a server.").MessageEmbed)
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger logs each invocation with its outcome and duration.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *SlashContext) error {
				start := time.Now()
				err := cmd.Run(ctx)
				evt := ctx.Logger.Info()
				if err != nil {
					evt = ctx.Logger.Error().Err(err)
				}
				evt.Str("command", cmd.Name()).
					Str("guild_id", ctx.Event.GuildID).
					Dur("took", time.Since(start)).
					Msg("command handled")
				return err
			},
		}
	}
}

// WithRecovery turns a panicking command into an error instead of taking the
// gateway handler down.
func WithRecovery() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *SlashContext) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
					}
				}()
				return cmd.Run(ctx)
			},
		}
	}
}
