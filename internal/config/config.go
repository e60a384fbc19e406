package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries everything the bot reads from the environment. A .env file
// in the working directory is loaded first when present.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`

	// Optional Spotify app credentials. Catalog links resolve only when
	// both are set.
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	// Proxy for media metadata and stream URL requests, e.g.
	// socks5://127.0.0.1:9050 or http://proxy:8080.
	YouTubeProxy string `env:"YOUTUBE_PROXY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SpotifyEnabled reports whether catalog credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
