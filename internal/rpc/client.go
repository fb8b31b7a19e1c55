// Package rpc speaks the Discord IPC protocol used to publish Rich Presence through a
// locally running Discord client.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSkippedFrames = 16

var ErrClosed = errors.New("rpc connection closed")

// Transport opens presence connections for an application.
type Transport interface {
	Connect(ctx context.Context, applicationID string) (Connection, error)
}

// Connection is one live IPC session bound to a single application id.
type Connection interface {
	SetActivity(ctx context.Context, activity *Activity) error
	Close() error
}

// DialFunc opens the raw IPC stream.
type DialFunc func(ctx context.Context) (net.Conn, error)

type Dialer struct {
	// Path overrides socket discovery when set.
	Path string
	Dial DialFunc
}

func NewDialer(path string) *Dialer {
	return &Dialer{Path: path}
}

func (d *Dialer) Connect(ctx context.Context, applicationID string) (Connection, error) {
	dial := d.Dial
	if dial == nil {
		dial = func(ctx context.Context) (net.Conn, error) {
			return dialIPC(ctx, d.Path)
		}
	}

	nc, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial discord ipc: %w", err)
	}

	c := &Conn{
		nc:            nc,
		applicationID: applicationID,
		pid:           os.Getpid(),
	}
	if err := c.handshake(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

type Conn struct {
	mu            sync.Mutex
	nc            net.Conn
	applicationID string
	pid           int
	closed        bool
}

func (c *Conn) handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.bindDeadline(ctx)
	defer stop()

	if err := writeFrame(c.nc, opHandshake, handshake{Version: 1, ClientID: c.applicationID}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	op, body, err := readFrame(c.nc)
	if err != nil {
		return fmt.Errorf("read handshake reply: %w", err)
	}

	switch op {
	case opClose:
		return closeError(body)
	case opFrame:
		var msg message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode handshake reply: %w", err)
		}
		if msg.Evt == "ERROR" {
			return eventError(msg.Data)
		}
		if msg.Evt != "READY" {
			return fmt.Errorf("unexpected handshake event %q", msg.Evt)
		}
		return nil
	default:
		return fmt.Errorf("unexpected handshake opcode %d", op)
	}
}

func (c *Conn) SetActivity(ctx context.Context, activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	stop := c.bindDeadline(ctx)
	defer stop()

	args, err := json.Marshal(setActivityArgs{PID: c.pid, Activity: activity})
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	nonce := uuid.NewString()
	if err := writeFrame(c.nc, opFrame, message{Cmd: "SET_ACTIVITY", Nonce: nonce, Args: args}); err != nil {
		return fmt.Errorf("send activity: %w", err)
	}

	for i := 0; i < maxSkippedFrames; i++ {
		op, body, err := readFrame(c.nc)
		if err != nil {
			return fmt.Errorf("read activity reply: %w", err)
		}

		switch op {
		case opClose:
			c.closed = true
			return closeError(body)
		case opPing:
			if err := writeFrame(c.nc, opPong, json.RawMessage(body)); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
			continue
		case opFrame:
		default:
			continue
		}

		var msg message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode activity reply: %w", err)
		}
		if msg.Nonce != nonce {
			continue
		}
		if msg.Evt == "ERROR" {
			return eventError(msg.Data)
		}
		return nil
	}
	return fmt.Errorf("no reply to activity update after %d frames", maxSkippedFrames)
}

// Close sends a close frame and tears down the stream. The returned error is informational.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.nc.Close()
	}
	c.closed = true

	_ = c.nc.SetWriteDeadline(time.Now().Add(time.Second))
	writeErr := writeFrame(c.nc, opClose, struct{}{})
	closeErr := c.nc.Close()
	if closeErr != nil {
		return closeErr
	}
	return writeErr
}

// bindDeadline applies the context deadline to the stream and interrupts blocked I/O when the
// context is cancelled.
func (c *Conn) bindDeadline(ctx context.Context) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.nc.SetDeadline(dl)
	} else {
		_ = c.nc.SetDeadline(time.Time{})
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Now())
	})
	return func() {
		stop()
	}
}

func closeError(body []byte) error {
	var rpcErr Error
	if err := json.Unmarshal(body, &rpcErr); err != nil || rpcErr.Code == 0 {
		zap.S().Debugw("discord closed ipc connection", "payload", string(body))
		return ErrClosed
	}
	return &rpcErr
}

func eventError(data json.RawMessage) error {
	var rpcErr Error
	if err := json.Unmarshal(data, &rpcErr); err != nil {
		return fmt.Errorf("discord rpc error: %s", string(data))
	}
	return &rpcErr
}
