package stream

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"github.com/Kp4103/Vibe/internal/music/track"
)

// Audio-only containers tried first, in order, before falling back to any
// audio format with a usable locator.
var formatPriority = []string{"opus", "mp4", "webm"}

// YouTube wraps the video platform client used both for direct metadata
// lookups and for enumerating and opening audio formats.
type YouTube struct {
	client *youtube.Client
	log    zerolog.Logger
}

// NewYouTube builds a client, optionally routed through an HTTP, SOCKS5 or
// SOCKS4 proxy.
func NewYouTube(proxyURL string, log zerolog.Logger) *YouTube {
	log = log.With().Str("component", "youtube").Logger()
	httpClient := &http.Client{Timeout: 15 * time.Second}

	if transport := proxyTransport(proxyURL, log); transport != nil {
		httpClient.Transport = transport
	}

	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
		log:    log,
	}
}

func proxyTransport(proxyStr string, log zerolog.Logger) *http.Transport {
	if proxyStr == "" {
		return nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Warn().Err(err).Msg("invalid proxy url, going direct")
		return nil
	}

	switch proxyURL.Scheme {
	case "http", "https":
		log.Info().Str("proxy", proxyStr).Msg("using HTTP proxy")
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks4":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Warn().Err(err).Msg("proxy dialer setup failed, going direct")
			return nil
		}
		log.Info().Str("proxy", proxyStr).Msg("using SOCKS proxy")
		return &http.Transport{
			DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Warn().Str("scheme", proxyURL.Scheme).Msg("unsupported proxy scheme, going direct")
		return nil
	}
}

// VideoInfo fetches direct metadata for a video link. It satisfies the
// resolver's VideoMetadata dependency.
func (y *YouTube) VideoInfo(ctx context.Context, videoURL string) (track.Item, bool, error) {
	video, err := y.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return track.Item{}, false, fmt.Errorf("video metadata: %w", err)
	}

	thumb := ""
	if len(video.Thumbnails) > 0 {
		thumb = video.Thumbnails[len(video.Thumbnails)-1].URL
	}

	item := track.Item{
		Title:     video.Title,
		Author:    video.Author,
		SourceURL: "https://www.youtube.com/watch?v=" + video.ID,
		Thumbnail: thumb,
		Duration:  video.Duration,
	}
	// live broadcasts report no fixed duration
	return item, video.Duration == 0, nil
}

// OpenBestFormat is the first streaming tier: enumerate formats and open the
// first working audio-only format in priority order, then any audio format.
func (y *YouTube) OpenBestFormat(ctx context.Context, item track.Item) (*Opened, error) {
	video, err := y.client.GetVideoContext(ctx, item.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("format enumeration: %w", err)
	}

	candidates := orderByPriority(video.Formats.WithAudioChannels())
	if len(candidates) == 0 {
		return nil, errors.New("no audio formats available")
	}

	var errs []error
	for i := range candidates {
		opened, err := y.openFormat(ctx, video, &candidates[i], item)
		if err == nil {
			return opened, nil
		}
		errs = append(errs, err)
		y.log.Debug().Err(err).Str("mime", candidates[i].MimeType).Str("track", item.Title).
			Msg("format failed, trying next")
	}
	return nil, fmt.Errorf("all formats failed: %v", errors.Join(errs...))
}

// OpenLowestQuality is the second tier: ignore the priority list and open
// the lowest-bitrate format that carries audio.
func (y *YouTube) OpenLowestQuality(ctx context.Context, item track.Item) (*Opened, error) {
	video, err := y.client.GetVideoContext(ctx, item.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("format enumeration: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, errors.New("no audio formats available")
	}

	lowest := &formats[0]
	for i := range formats {
		if formats[i].Bitrate > 0 && (lowest.Bitrate == 0 || formats[i].Bitrate < lowest.Bitrate) {
			lowest = &formats[i]
		}
	}

	return y.openFormat(ctx, video, lowest, item)
}

func (y *YouTube) openFormat(ctx context.Context, video *youtube.Video, format *youtube.Format, item track.Item) (*Opened, error) {
	streamURL, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}

	pcm, cleanup, err := newPCMStream(streamURL, 0)
	if err != nil {
		return nil, err
	}

	return &Opened{
		PCM:     pcm,
		Cleanup: cleanup,
		Item:    item,
		Quality: formatQuality(format),
	}, nil
}

// orderByPriority puts audio-only formats matching the priority list first,
// keeping the remaining audio-capable formats as a tail fallback.
func orderByPriority(formats youtube.FormatList) []youtube.Format {
	var audioOnly, rest []youtube.Format
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio/") {
			audioOnly = append(audioOnly, f)
		} else {
			rest = append(rest, f)
		}
	}

	var ordered []youtube.Format
	used := make(map[int]bool)
	for _, want := range formatPriority {
		for i, f := range audioOnly {
			if used[i] {
				continue
			}
			if matchesPriority(f, want) {
				ordered = append(ordered, f)
				used[i] = true
			}
		}
	}
	for i, f := range audioOnly {
		if !used[i] {
			ordered = append(ordered, f)
		}
	}
	return append(ordered, rest...)
}

func matchesPriority(f youtube.Format, want string) bool {
	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		return false
	}
	switch want {
	case "opus":
		return strings.Contains(params["codecs"], "opus")
	default:
		return strings.TrimPrefix(mediaType, "audio/") == want
	}
}

func formatQuality(f *youtube.Format) track.Quality {
	q := track.Quality{BitrateKbps: f.Bitrate / 1000}

	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		return q
	}
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		q.Container = mediaType[i+1:]
	}
	q.Codec = params["codecs"]
	return q
}
