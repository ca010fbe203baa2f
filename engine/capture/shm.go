package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/gommon/log"
)

// DefaultShmPath is where an external grabber is expected to drop frames.
const DefaultShmPath = "/dev/shm/screencast_frame"

// shmHeaderSize covers the little-endian width and height fields.
const shmHeaderSize = 8

// ErrWatcherClosed means the file watcher stopped; the device cannot recover.
var ErrWatcherClosed = errors.New("capture: shared memory watcher closed")

// ShmDevice reads BGRA frames that another process writes to a shared memory
// file. The file holds a uint32 LE width, a uint32 LE height and the pixels.
type ShmDevice struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *log.Logger
	last    []byte
}

// NewShmDevice watches the directory holding path for writes to it.
func NewShmDevice(path string, logger *log.Logger) (*ShmDevice, error) {
	if path == "" {
		path = DefaultShmPath
	}
	if logger == nil {
		logger = log.New("capture")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &ShmDevice{
		path:    path,
		watcher: watcher,
		logger:  logger,
	}, nil
}

// Poll reports ErrNotReady unless the file was written since the last call.
func (d *ShmDevice) Poll() (RawFrame, error) {
	select {
	case event, ok := <-d.watcher.Events:
		if !ok {
			return RawFrame{}, ErrWatcherClosed
		}
		if event.Name != d.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return RawFrame{}, ErrNotReady
		}
		return d.read()

	case err, ok := <-d.watcher.Errors:
		if !ok {
			return RawFrame{}, ErrWatcherClosed
		}
		d.logger.Warnf("shared memory watcher: %v", err)
		return RawFrame{}, ErrNotReady

	default:
		return RawFrame{}, ErrNotReady
	}
}

func (d *ShmDevice) read() (RawFrame, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		// the writer may be replacing the file
		d.logger.Debugf("reading %s: %v", d.path, err)
		return RawFrame{}, ErrNotReady
	}
	// one write can fire several events
	if bytes.Equal(data, d.last) {
		return RawFrame{}, ErrNotReady
	}
	frame, err := ParseShmFrame(data)
	if err != nil {
		d.logger.Debugf("parsing %s: %v", d.path, err)
		return RawFrame{}, ErrNotReady
	}
	d.last = data
	return frame, nil
}

// Close stops the file watcher.
func (d *ShmDevice) Close() error {
	return d.watcher.Close()
}

// ParseShmFrame decodes the shared memory layout. The pixel payload is not
// checked against the dimensions; that is left to RawFrame.Validate.
func ParseShmFrame(data []byte) (RawFrame, error) {
	if len(data) < shmHeaderSize {
		return RawFrame{}, fmt.Errorf("shared memory frame too short: %d bytes", len(data))
	}
	return RawFrame{
		Width:  int(binary.LittleEndian.Uint32(data[0:4])),
		Height: int(binary.LittleEndian.Uint32(data[4:8])),
		Pix:    data[shmHeaderSize:],
		Layout: LayoutBGRA,
	}, nil
}
