package stream

import (
	"fmt"
	"io"
	"os/exec"
)

// newPCMStream starts an ffmpeg process decoding the given media URL into
// raw s16le PCM at the voice sample rate. The returned cleanup kills the
// process; reading the pipe after that returns an error or EOF.
func newPCMStream(mediaURL string, seekSec float64) (io.ReadCloser, func(), error) {
	cmd := exec.Command("ffmpeg",
		"-ss", fmt.Sprintf("%.3f", seekSec),
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", mediaURL,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}

	return pipe, cleanup, nil
}
