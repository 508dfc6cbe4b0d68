package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/bus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Companions run on other devices on the LAN; auth is the bearer token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientFrame is what a companion may send on the event stream.
type clientFrame struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

// serverFrame carries either a bus event or the reply to a clientFrame.
type serverFrame struct {
	Type     string       `json:"type"`
	Event    *bus.Message `json:"event,omitempty"`
	Cmd      string       `json:"cmd,omitempty"`
	OK       bool         `json:"ok,omitempty"`
	State    string       `json:"state,omitempty"`
	Response string       `json:"response,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusNotFound, "events unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.deps.Events.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan serverFrame, 8)
	go s.readFrames(ctx, cancel, conn, out)

	s.log.Info("Event stream opened", "remote", r.RemoteAddr)
	defer s.log.Info("Event stream closed", "remote", r.RemoteAddr)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// All writes happen here; gorilla allows one concurrent writer.
	for {
		var frame serverFrame
		select {
		case <-ctx.Done():
			return
		case m, ok := <-events:
			if !ok {
				return
			}
			frame = serverFrame{Type: "event", Event: &m}
		case frame = <-out:
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			s.log.Debug("Event stream write failed", "err", err)
			return
		}
	}
}

func (s *Server) readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- serverFrame) {
	defer cancel()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in clientFrame
		if err := conn.ReadJSON(&in); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.log.Debug("Event stream read failed", "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := s.runFrame(ctx, in)
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) runFrame(ctx context.Context, in clientFrame) serverFrame {
	reply := serverFrame{Type: "reply", Cmd: in.Cmd}

	var err error
	switch in.Cmd {
	case "listen":
		err = s.deps.Assistant.Start(ctx)
	case "stop":
		err = s.deps.Assistant.Stop(ctx)
	case "command":
		res, cerr := s.deps.Assistant.Submit(ctx, in.Text)
		reply.Response = res.Response
		err = cerr
	case "status":
	default:
		reply.Error = "unknown command"
		return reply
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	reply.State = string(s.deps.Assistant.State())
	return reply
}
