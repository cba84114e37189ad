package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const defaultHandshakeTimeout = 10 * time.Second

// Conn is the transport handle owned by a Client. It is replaced wholesale
// on reconnect, never mutated in place. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one transport handle to a feed address.
type Dialer interface {
	Dial(addr string, header http.Header) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
}

// NewDialer returns the production WebSocket dialer.
func NewDialer() Dialer {
	return &wsDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
	}
}

func (d *wsDialer) Dial(addr string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.Dial(addr, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}
