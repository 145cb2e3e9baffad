package session

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// MaxLineBytes bounds a single inbound message.
	MaxLineBytes = 64 * 1024
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
)

// ErrLineTooLong is returned when a client sends an oversized line.
var ErrLineTooLong = errors.New("line too long")

// Transport moves whole protocol lines. Implementations need not be safe for
// concurrent reads or concurrent writes, but one reader and one writer may run
// at the same time.
type Transport interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// LineTransport frames messages with '\n' over a stream connection.
type LineTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewLineTransport wraps a TCP (or any stream) connection.
func NewLineTransport(conn net.Conn) *LineTransport {
	return &LineTransport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 4096),
	}
}

func (t *LineTransport) ReadLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := t.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > MaxLineBytes {
			return nil, ErrLineTooLong
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (t *LineTransport) WriteLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := t.conn.Write(buf)
	return err
}

func (t *LineTransport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *LineTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *LineTransport) Close() error {
	return t.conn.Close()
}

// WSTransport carries one protocol message per WebSocket text frame.
type WSTransport struct {
	conn *websocket.Conn
}

// NewWSTransport wraps an upgraded WebSocket connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	conn.SetReadLimit(MaxLineBytes)
	return &WSTransport{conn: conn}
}

func (t *WSTransport) ReadLine() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *WSTransport) WriteLine(line []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, line)
}

func (t *WSTransport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *WSTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *WSTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return t.conn.Close()
}
