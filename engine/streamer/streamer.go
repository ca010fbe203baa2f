package streamer

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/gommon/log"

	"screencast/engine/broadcast"
)

var (
	// ErrViewerGone wraps the write error that ended a stream.
	ErrViewerGone = errors.New("viewer gone")
	ErrAbort      = errors.New("abort")
)

// FrameStreamer is an interface for streaming encoded frames to different outputs.
type FrameStreamer interface {
	Stream(frame []byte) error
	Close() error
}

// Pump copies frames from sub into out until the channel closes, ctx ends or
// out fails. Lag is skipped silently. The subscription is always released;
// out is left open for the caller.
func Pump(ctx context.Context, sub *broadcast.Subscription, out FrameStreamer, logger *log.Logger) error {
	defer sub.Close()

	for {
		res, err := sub.Next(ctx)
		if err != nil {
			logger.Debugf("subscriber %s: %v", sub.ID, err)
			return nil
		}

		switch res.Kind {
		case broadcast.KindLagged:
			logger.Debugf("subscriber %s lagged, skipping %d frames", sub.ID, res.Missed)

		case broadcast.KindClosed:
			logger.Infof("subscriber %s: stream closed after %d frames", sub.ID, sub.Delivered())
			return nil

		case broadcast.KindFrame:
			if err := out.Stream(res.Frame); err != nil {
				return fmt.Errorf("%w: %w", ErrViewerGone, err)
			}
		}
	}
}
