package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"screencast/engine/broadcast"
	"screencast/engine/pipeline"
	"screencast/engine/streamer"
)

// StatsSource reports producer statistics for /info.
type StatsSource interface {
	Stats() pipeline.Stats
}

// Server exposes the live feed over HTTP. Every handler reads from the one
// Channel passed to New.
type Server struct {
	echo     *echo.Echo
	channel  *broadcast.Channel
	producer StatsSource
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New builds the HTTP surface over channel. producer feeds /info.
func New(channel *broadcast.Channel, producer StatsSource, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New("server")
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger

	s := &Server{
		echo:     e,
		channel:  channel,
		producer: producer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}

	e.GET("/", s.index)
	e.GET("/stream", s.stream)
	e.GET("/ws", s.websocket)
	e.GET("/info", s.info)
	return s
}

// Handler exposes the routes without listening, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Infof("serving http://%s/", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting viewers and waits for open requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// stream serves the multipart/x-mixed-replace feed until the viewer leaves or
// the channel closes.
func (s *Server) stream(c echo.Context) error {
	sub := s.channel.Subscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, streamer.ContentType)
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	s.logger.Infof("viewer %s connected from %s", sub.ID, c.RealIP())
	if err := streamer.Pump(c.Request().Context(), sub, streamer.NewMJPEGStreamer(res), s.logger); err != nil {
		s.logger.Infof("viewer %s disconnected: %v", sub.ID, err)
		return nil
	}
	s.logger.Infof("viewer %s finished after %d frames (%d skipped)", sub.ID, sub.Delivered(), sub.Missed())
	return nil
}

func (s *Server) websocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		s.logger.Warnf("websocket upgrade: %v", err)
		return nil
	}
	ws := streamer.NewWebSocketStreamer(conn)
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	ws.WatchClose(cancel)

	sub := s.channel.Subscribe()
	s.logger.Infof("websocket viewer %s connected from %s", sub.ID, c.RealIP())
	if err := streamer.Pump(ctx, sub, ws, s.logger); err != nil {
		s.logger.Infof("websocket viewer %s disconnected: %v", sub.ID, err)
	}
	return nil
}

func (s *Server) info(c echo.Context) error {
	body := map[string]interface{}{
		"ok":      true,
		"channel": s.channel.Stats(),
	}
	if s.producer != nil {
		body["producer"] = s.producer.Stats()
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) index(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
  <head>
    <title>Screen Stream</title>
    <style>
      html, body { margin: 0; height: 100%; background: #000; }
      img { width: 100%; height: 100vh; object-fit: contain; }
    </style>
  </head>
  <body>
    <img src="/stream" alt="live screen">
  </body>
</html>
`
