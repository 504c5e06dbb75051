// Package websocket carries link packets as binary websocket frames.
package websocket

import (
	"context"
	"net/http"

	"golang.org/x/net/websocket"
)

// ReadWriter implements PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Handler serves every websocket connection with serve until it
// returns.
func Handler(serve func(*ReadWriter) error) http.Handler {
	return websocket.Server{
		Handler: func(conn *websocket.Conn) {
			serve(New(conn))
		},
	}
}

// Dial connects to a websocket URL such as ws://host:port/link.
func Dial(ctx context.Context, url string) (*ReadWriter, error) {
	config, err := websocket.NewConfig(url, "http://localhost/")
	if err != nil {
		return nil, err
	}
	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}
