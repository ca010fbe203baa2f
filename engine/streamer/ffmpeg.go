package streamer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
)

// FFmpegStreamer pipes JPEG frames into an ffmpeg process that re-encodes them
// and pushes the result to a URL (RTMP endpoint or file).
type FFmpegStreamer struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	logDir    string // directory for ffmpeg output
	targetURL string
	fps       int
	command   func(args ...string) *exec.Cmd
	logger    *log.Logger

	mu               sync.Mutex
	isReconnecting   bool
	isAbort          bool
	isClosed         bool
	errorBucket      time.Time     // reconnects push this forward a minute each
	reconnectTimeout time.Duration // wait before restarting ffmpeg
}

// NewFFmpegStreamer starts ffmpeg pushing to targetURL at fps frames per second.
// ffmpeg's output goes to a timestamped log file in logDir.
func NewFFmpegStreamer(logDir, targetURL string, fps int, logger *log.Logger) (*FFmpegStreamer, error) {
	return newFFmpegStreamer(logDir, targetURL, fps, logger, func(args ...string) *exec.Cmd {
		return exec.Command("ffmpeg", args...)
	})
}

// newFFmpegStreamer is NewFFmpegStreamer with the process constructor injected.
func newFFmpegStreamer(
	logDir, targetURL string,
	fps int,
	logger *log.Logger,
	command func(args ...string) *exec.Cmd,
) (*FFmpegStreamer, error) {
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, err
	}
	if fps <= 0 {
		fps = 30
	}
	if logger == nil {
		logger = log.New("streamer")
	}

	s := &FFmpegStreamer{
		logDir:           logDir,
		targetURL:        targetURL,
		fps:              fps,
		command:          command,
		logger:           logger,
		reconnectTimeout: 2 * time.Second,
		errorBucket:      time.Now(),
	}
	if err := s.startFFmpeg(); err != nil {
		return nil, err
	}
	return s, nil
}

// ffmpegArgs reads an MJPEG elementary stream from stdin and re-encodes it to
// low latency H.264.
func ffmpegArgs(targetURL string, fps int) []string {
	args := []string{
		"-y",
		"-f", "mjpeg",
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(2 * fps),
		"-b:v", "3000k",
		"-maxrate", "3000k",
		"-bufsize", "1500k",
	}
	if strings.HasPrefix(targetURL, "rtmp://") || strings.HasPrefix(targetURL, "rtmps://") {
		args = append(args, "-f", "flv")
	}
	return append(args, targetURL)
}

// startFFmpeg starts a new ffmpeg process. Must be called with s.mu held or
// before s is shared.
func (s *FFmpegStreamer) startFFmpeg() error {
	cmd := s.command(ffmpegArgs(s.targetURL, s.fps)...)

	logFile, err := os.Create(filepath.Join(s.logDir, fmt.Sprintf("ffmpeg.%d.log", time.Now().UnixNano())))
	if err != nil {
		return err
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logFile.Close()
		return err
	}
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return err
	}
	// the child holds its own descriptor now
	logFile.Close()

	s.cmd = cmd
	s.stdin = stdin
	s.isReconnecting = false
	return nil
}

// reconnect restarts ffmpeg after a broken pipe. It gives up with ErrAbort when
// reconnects pile up faster than one per minute over a five minute window.
// s.mu is not held during the wait.
func (s *FFmpegStreamer) reconnect() error {
	s.mu.Lock()
	s.errorBucket = s.timeoutBucket().Add(time.Minute)
	if s.timeoutBucket().After(time.Now().Add(5 * time.Minute)) {
		s.isAbort = true
		s.mu.Unlock()
		return ErrAbort
	}

	s.logger.Infof("restarting ffmpeg in %s", s.reconnectTimeout)
	if err := s.closeProcess(); err != nil {
		s.logger.Debugf("closing previous ffmpeg: %v", err)
	}
	wait := s.reconnectTimeout
	s.mu.Unlock()

	time.Sleep(wait)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	if err := s.startFFmpeg(); err != nil {
		s.isReconnecting = false
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	s.logger.Infof("ffmpeg restarted")
	return nil
}

// Stream writes one JPEG to ffmpeg. Frames arriving while ffmpeg restarts are
// dropped.
func (s *FFmpegStreamer) Stream(frame []byte) error {
	s.mu.Lock()
	if s.isAbort {
		s.mu.Unlock()
		return ErrAbort
	}
	if s.isClosed {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	if s.isReconnecting {
		s.mu.Unlock()
		return nil
	}
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return io.ErrClosedPipe
	}

	if _, err := stdin.Write(frame); err != nil {
		if !isBrokenPipe(err) {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		s.mu.Lock()
		if s.isClosed {
			s.mu.Unlock()
			return io.ErrClosedPipe
		}
		if s.isReconnecting {
			s.mu.Unlock()
			return nil
		}
		s.isReconnecting = true
		s.mu.Unlock()

		s.logger.Warnf("broken pipe to ffmpeg, reconnecting")
		go func() {
			if err := s.reconnect(); err != nil {
				s.logger.Errorf("ffmpeg reconnect: %v", err)
			}
		}()
	}
	return nil
}

// isBrokenPipe reports whether err means ffmpeg stopped reading its stdin.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || strings.Contains(err.Error(), "broken pipe")
}

// Close closes ffmpeg's stdin and waits for it to exit. A pending restart is
// cancelled.
func (s *FFmpegStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isClosed = true
	return s.closeProcess()
}

// closeProcess releases the current ffmpeg process. Must be called with s.mu held.

func (s *FFmpegStreamer) closeProcess() error {
	if s.stdin != nil {
		if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
		s.stdin = nil
	}
	if s.cmd != nil {
		cmd := s.cmd
		s.cmd = nil
		if err := cmd.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// timeoutBucket returns the error bucket, never earlier than now.
func (s *FFmpegStreamer) timeoutBucket() time.Time {
	if time.Now().Before(s.errorBucket) {
		return s.errorBucket
	}
	return time.Now()
}
