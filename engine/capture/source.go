package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"
)

// DefaultPollInterval is the retry delay after ErrNotReady, roughly one 60 Hz frame.
const DefaultPollInterval = 16 * time.Millisecond

// Device is the raw pixel producer behind a Source. Poll must not block waiting
// for a frame: it returns ErrNotReady instead. Any other error is fatal.
type Device interface {
	Poll() (RawFrame, error)
}

// Source polls a Device and hands every valid frame to the caller.
type Source struct {
	device       Device
	pollInterval time.Duration
	logger       *log.Logger

	dropped atomic.Uint64
}

// NewSource wraps device. A non-positive interval selects DefaultPollInterval.
func NewSource(device Device, pollInterval time.Duration, logger *log.Logger) *Source {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.New("capture")
	}
	return &Source{
		device:       device,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run polls until the device fails or ctx is cancelled. It returns nil on
// cancellation and the device error otherwise. emit is called on the same
// goroutine, so it may take ownership of the frame.
func (s *Source) Run(ctx context.Context, emit func(RawFrame)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := s.device.Poll()
		if errors.Is(err, ErrNotReady) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.pollInterval):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("capture device: %w", err)
		}

		if err := frame.Validate(); err != nil {
			s.dropped.Add(1)
			s.logger.Warnf("dropping frame: %v", err)
			continue
		}
		emit(frame)
	}
}

// Dropped reports how many frames failed validation.
func (s *Source) Dropped() uint64 {
	return s.dropped.Load()
}
