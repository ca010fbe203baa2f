package pipeline

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"

	"screencast/engine/broadcast"
	"screencast/engine/capture"
	"screencast/engine/encoder"
)

// Producer drives capture, encoding and publishing on one dedicated thread.
type Producer struct {
	source  *capture.Source
	encoder encoder.Encoder
	channel *broadcast.Channel
	logger  *log.Logger

	captured       atomic.Uint64
	encoded        atomic.Uint64
	encodeFailures atomic.Uint64
	encodeNanos    atomic.Int64
	stopped        atomic.Bool
}

// Stats mirrors the frame statistics printed by /info.
type Stats struct {
	Captured        uint64 `json:"captured"`
	Encoded         uint64 `json:"encoded"`
	EncodeFailures  uint64 `json:"encode_failures"`
	InvalidFrames   uint64 `json:"invalid_frames"`
	AvgEncodeTime   string `json:"avg_encode_time"`
	ProducerStopped bool   `json:"producer_stopped"`
}

// New wires a capture source, an encoder and the channel frames are published to.
func New(source *capture.Source, enc encoder.Encoder, channel *broadcast.Channel, logger *log.Logger) *Producer {
	if logger == nil {
		logger = log.New("pipeline")
	}
	return &Producer{
		source:  source,
		encoder: enc,
		channel: channel,
		logger:  logger,
	}
}

// Run blocks until the capture device fails or ctx is cancelled. Either way
// the channel is closed, so every viewer stream ends; the rest of the process
// keeps running.
func (p *Producer) Run(ctx context.Context) error {
	// capture polls with sleeps and must not share a thread with network work
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer p.channel.Close()
	defer p.stopped.Store(true)

	err := p.source.Run(ctx, p.handle)
	if err != nil {
		p.logger.Errorf("capture stopped: %v; viewers will receive no further frames", err)
		return err
	}
	p.logger.Infof("capture stopped")
	return nil
}

func (p *Producer) handle(frame capture.RawFrame) {
	p.captured.Add(1)

	started := time.Now()
	data, err := p.encoder.Encode(frame)
	if err != nil {
		p.encodeFailures.Add(1)
		p.logger.Warnf("dropping frame: %v", err)
		return
	}
	p.encodeNanos.Add(int64(time.Since(started)))
	p.encoded.Add(1)

	p.channel.Publish(data)
}

// Stats is safe to call while Run is active.
func (p *Producer) Stats() Stats {
	encoded := p.encoded.Load()
	var avg time.Duration
	if encoded > 0 {
		avg = time.Duration(p.encodeNanos.Load() / int64(encoded))
	}
	return Stats{
		Captured:        p.captured.Load(),
		Encoded:         encoded,
		EncodeFailures:  p.encodeFailures.Load(),
		InvalidFrames:   p.source.Dropped(),
		AvgEncodeTime:   avg.String(),
		ProducerStopped: p.stopped.Load(),
	}
}
