package streamer

import (
	"io"
	"net/http"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

const (
	Boundary    = "frame"
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary
)

var recordTrailer = []byte("\r\n")

// WriteRecord writes one multipart part holding frame:
//
//	--frame\r\n
//	Content-Type: image/jpeg\r\n
//	Content-Length: N\r\n
//	\r\n
//	<N bytes>\r\n
func WriteRecord(w io.Writer, frame []byte) error {
	header := bytebufferpool.Get()
	defer bytebufferpool.Put(header)

	header.WriteString("--" + Boundary + "\r\n")
	header.WriteString("Content-Type: image/jpeg\r\n")
	header.WriteString("Content-Length: ")
	header.B = strconv.AppendInt(header.B, int64(len(frame)), 10)
	header.WriteString("\r\n\r\n")

	if _, err := w.Write(header.B); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write(recordTrailer)
	return err
}

// MJPEGStreamer writes frames as multipart records to an HTTP response body.
type MJPEGStreamer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewMJPEGStreamer writes records to w, flushing after each one when w supports it.
func NewMJPEGStreamer(w io.Writer) *MJPEGStreamer {
	s := &MJPEGStreamer{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Stream writes one record and flushes it to the viewer.
func (s *MJPEGStreamer) Stream(frame []byte) error {
	if err := WriteRecord(s.w, frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close is a no-op; the HTTP server owns the connection.
func (s *MJPEGStreamer) Close() error {
	return nil
}
