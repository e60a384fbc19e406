package catalog

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Spotify implements Client against the Spotify Web API using the
// client-credentials flow. The token exchange happens once in NewSpotify;
// the oauth2 transport refreshes the bearer token after that.
type Spotify struct {
	client *spotify.Client
}

func NewSpotify(ctx context.Context, clientID, clientSecret string) (*Spotify, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify token exchange: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &Spotify{client: spotify.New(httpClient)}, nil
}

func (s *Spotify) GetTrack(ctx context.Context, id string) (Track, error) {
	full, err := s.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, fmt.Errorf("spotify get track %s: %w", id, err)
	}

	t := Track{Name: full.Name}
	if len(full.Artists) > 0 {
		t.Artist = full.Artists[0].Name
	}
	return t, nil
}
