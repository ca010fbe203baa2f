package streamer

import (
	"context"
	"errors"

	"github.com/labstack/gommon/log"

	"screencast/engine/broadcast"
)

// Relay is a server-side viewer that forwards the live feed to another
// FrameStreamer, typically ffmpeg pushing to an RTMP ingest.
type Relay struct {
	channel *broadcast.Channel
	out     FrameStreamer
	logger  *log.Logger
}

// NewRelay forwards frames from channel to out.
func NewRelay(channel *broadcast.Channel, out FrameStreamer, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.New("relay")
	}
	return &Relay{channel: channel, out: out, logger: logger}
}

// Run forwards frames until ctx ends, the channel closes or the output aborts.
// The output is closed on return.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.channel.Subscribe()
	r.logger.Infof("relay subscribed as %s", sub.ID)

	err := Pump(ctx, sub, r.out, r.logger)
	if closeErr := r.out.Close(); closeErr != nil {
		r.logger.Warnf("closing relay output: %v", closeErr)
	}
	if errors.Is(err, ErrAbort) {
		r.logger.Errorf("relay aborted after repeated ffmpeg failures")
	}
	return err
}
