package resolver

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeURLPattern  = regexp.MustCompile(`(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)
	spotifyTrackID     = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?track/([A-Za-z0-9]+)`)
	youtubeVideoIDForm = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsSpotifyTrackURL reports whether the input points at the catalog service,
// whether or not a track id can actually be extracted from it.
func IsSpotifyTrackURL(s string) bool {
	return isURL(s) && strings.Contains(s, "open.spotify.com/")
}

// ExtractSpotifyTrackID pulls the track id out of a catalog link.
func ExtractSpotifyTrackID(s string) (string, bool) {
	m := spotifyTrackID.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// IsYouTubeURL reports whether the input is any YouTube link shape.
func IsYouTubeURL(s string) bool {
	return isURL(s) && youtubeURLPattern.MatchString(s)
}

// ExtractVideoID pulls the 11-char video id out of short-link and
// parameterized watch-link shapes.
func ExtractVideoID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	var id string
	switch u.Hostname() {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		}
	}

	if !youtubeVideoIDForm.MatchString(id) {
		return "", false
	}
	return id, true
}

// CanonicalVideoURL normalizes any recognized video link to the plain watch
// form, dropping playlist, timestamp and tracking parameters.
func CanonicalVideoURL(raw string) (string, bool) {
	id, ok := ExtractVideoID(raw)
	if !ok {
		return "", false
	}
	return "https://www.youtube.com/watch?v=" + id, true
}
