// Package ws backs the telemetry link with gorilla/websocket.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Dash/internal/core"
)

const DefaultReadLimit = 1 << 20

// Dialer implements core.LinkDialer.
type Dialer struct {
	url       string
	readLimit int64
	dialer    *websocket.Dialer
}

func NewDialer(url string, readLimit int64) *Dialer {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	return &Dialer{
		url:       url,
		readLimit: readLimit,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

func (d *Dialer) Dial(ctx context.Context) (core.LinkConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.readLimit)
	log.Debug().Str("module", "ws").Str("url", d.url).Msg("dialed")
	return &Conn{conn: conn}, nil
}

// Conn is one telemetry socket.
type Conn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Run starts the read pump and returns. onClose fires once, after the last onMessage.
func (c *Conn) Run(onMessage func([]byte), onClose func(error)) {
	go c.readPump(onMessage, onClose)
}

func (c *Conn) readPump(onMessage func([]byte), onClose func(error)) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Str("module", "ws").Msg("closed by peer")
			} else {
				log.Warn().Err(err).Str("module", "ws").Msg("read error")
			}
			_ = c.Close()
			onClose(err)
			return
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		onMessage(data)
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
