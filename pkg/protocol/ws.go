package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

type WebSocket struct {
	url   string
	delay time.Duration

	mu   sync.Mutex // guards conn swaps and writes
	conn *ws.Conn
}

func Dial(ctx context.Context, url string, reconnectDelay time.Duration) (*WebSocket, error) {
	log.Debug("Dialing hub", "url", url)

	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WebSocket{url: url, delay: reconnectDelay, conn: conn}, nil
}

func (web *WebSocket) URL() string { return web.url }

func (web *WebSocket) Write(payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	log.Debug("Write ws", "msg", string(payload))
	return web.conn.WriteMessage(ws.TextMessage, payload)
}

type IncomeKind uint

const (
	ConnClosed IncomeKind = iota
	ReadFailed
	ReadOK
)

type Income struct {
	Kind IncomeKind
	Msg  []byte
	Err  error
}

// Read blocks for the next frame. Only one goroutine may read.
func (web *WebSocket) Read() Income {
	web.mu.Lock()
	conn := web.conn
	web.mu.Unlock()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return Income{Kind: ConnClosed, Err: err}
		}
		return Income{Kind: ReadFailed, Err: err}
	}

	log.Debug("Read ws", "msg", string(msg))
	return Income{Kind: ReadOK, Msg: msg}
}

// Reconnect redials until it succeeds or ctx is done.
func (web *WebSocket) Reconnect(ctx context.Context) error {
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, web.url, nil)
		if err == nil {
			web.mu.Lock()
			web.conn.Close()
			web.conn = conn
			web.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(web.delay):
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()
	return web.conn.Close()
}

// isClosed treats close frames and a torn-down socket the same way.
func isClosed(err error) bool {
	var closeErr *ws.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
