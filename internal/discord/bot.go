package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/Kp4103/Vibe/internal/command"
	musiccmd "github.com/Kp4103/Vibe/internal/command/music"
	"github.com/Kp4103/Vibe/internal/config"
	"github.com/Kp4103/Vibe/internal/music/catalog"
	"github.com/Kp4103/Vibe/internal/music/player"
	"github.com/Kp4103/Vibe/internal/music/resolver"
	"github.com/Kp4103/Vibe/internal/music/search"
	"github.com/Kp4103/Vibe/internal/music/stream"
	"github.com/Kp4103/Vibe/pkg/throttle"
)

// requestInterval spaces outgoing media requests so upstream services see at
// most one per second from this process.
const requestInterval = time.Second

// Bot owns the Discord session and everything hanging off it.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	log      zerolog.Logger
	commands *command.Registry
	players  *player.Registry
	resolver *resolver.Resolver

	limiter *throttle.Limiter
	search  search.Client
	youtube *stream.YouTube
}

// New assembles a bot from configuration. The session is not opened yet.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		log:      log,
		commands: command.NewRegistry(),
		limiter:  throttle.NewLimiter(requestInterval),
		search:   search.NewYouTube(),
		youtube:  stream.NewYouTube(cfg.YouTubeProxy, log),
	}

	var cat catalog.Client
	if cfg.SpotifyEnabled() {
		sp, err := catalog.NewSpotify(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			return nil, fmt.Errorf("spotify client: %w", err)
		}
		cat = sp
		log.Info().Msg("spotify catalog lookups enabled")
	} else {
		log.Info().Msg("spotify credentials absent, catalog links disabled")
	}

	b.resolver = resolver.New(b.search, cat, b.youtube, b.limiter, log)
	b.players = player.NewRegistry(b.newPlayerFactory())
	b.registerCommands()
	return b, nil
}

func (b *Bot) registerCommands() {
	b.commands.Register(
		&musiccmd.Command{Bot: b, Resolver: b.resolver},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
		command.WithRecovery(),
	)
}

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, stopping players")
	b.stopAllPlayers()
	return nil
}

func (b *Bot) stopAllPlayers() {
	for _, guildID := range b.players.GuildIDs() {
		if p, ok := b.players.Get(guildID); ok {
			p.Stop()
		}
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("gateway session ready")

	for _, g := range r.Guilds {
		b.syncCommands(g.ID)
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.syncCommands(g.Guild.ID)
}

// syncCommands overwrites the guild's slash commands with the current set.
func (b *Bot) syncCommands(guildID string) {
	appID := b.dg.State.User.ID
	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, b.commands.Definitions()); err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("slash command sync failed")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	cmd, ok := b.commands.Get(name)
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command invoked")
		return
	}

	ctx := &command.SlashContext{Session: s, Event: i, Logger: b.log}
	if err := cmd.Run(ctx); err != nil {
		b.log.Error().Err(err).Str("command", name).Msg("command failed")
	}
}
