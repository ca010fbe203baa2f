package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screencast/engine/broadcast"
	"screencast/engine/capture"
	"screencast/engine/config"
	"screencast/engine/encoder"
	"screencast/engine/pipeline"
	"screencast/engine/server"
	"screencast/engine/streamer"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.NewLogger("screencast")

	device, err := openDevice(cfg)
	if err != nil {
		logger.Fatalf("couldn't open %s capture: %v", cfg.Source, err)
	}
	if closer, ok := device.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Infof("capturing from %s source", cfg.Source)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel := broadcast.New(cfg.Capacity)
	producer := pipeline.New(
		capture.NewSource(device, cfg.PollInterval, cfg.NewLogger("capture")),
		encoder.NewJPEGEncoder(cfg.Quality),
		channel,
		cfg.NewLogger("pipeline"),
	)

	// frame production; a capture failure only ends the feed, not the process
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		_ = producer.Run(appCtx)
	}()

	relayDone := make(chan struct{})
	if cfg.Relay.URL != "" {
		relayLogger := cfg.NewLogger("relay")
		ffmpeg, err := streamer.NewFFmpegStreamer(cfg.Relay.LogDir, cfg.Relay.URL, cfg.Relay.FPS, relayLogger)
		if err != nil {
			logger.Errorf("couldn't start relay: %v", err)
			close(relayDone)
		} else {
			logger.Infof("relaying to %s", cfg.Relay.URL)
			go func() {
				defer close(relayDone)
				if err := streamer.NewRelay(channel, ffmpeg, relayLogger).Run(appCtx); err != nil {
					relayLogger.Errorf("relay stopped: %v", err)
				}
			}()
		}
	} else {
		close(relayDone)
	}

	srv := server.New(channel, producer, cfg.NewLogger("server"))
	go func() {
		if err := srv.Start(cfg.Addr); err != nil {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-appCtx.Done()
	logger.Infof("closing application")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Errorf("shutdown: %v", err)
	}
	// the relay closes ffmpeg's stdin and waits for it to finish the output
	if !waitDone(shutdownCtx, producerDone, relayDone) {
		logger.Warnf("gave up waiting for the producer and relay to stop")
	}
}

// waitDone blocks until every channel is closed or ctx ends. It reports
// whether all of them closed.
func waitDone(ctx context.Context, done ...<-chan struct{}) bool {
	for _, d := range done {
		select {
		case <-d:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func openDevice(cfg *config.Config) (capture.Device, error) {
	switch cfg.Source {
	case config.SourceScreen:
		return capture.NewScreenDevice(cfg.FrameInterval)
	case config.SourcePattern:
		return capture.NewPatternDevice(cfg.Pattern.Width, cfg.Pattern.Height, cfg.FrameInterval)
	case config.SourceShm:
		return capture.NewShmDevice(cfg.Shm.Path, cfg.NewLogger("capture"))
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
