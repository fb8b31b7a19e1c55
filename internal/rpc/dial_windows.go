//go:build windows

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

const maxPipeIndex = 10

func SocketCandidates() []string {
	paths := make([]string, 0, maxPipeIndex)
	for i := 0; i < maxPipeIndex; i++ {
		paths = append(paths, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return paths
}

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	if path != "" {
		return winio.DialPipeContext(ctx, path)
	}

	var lastErr error
	for _, candidate := range SocketCandidates() {
		conn, err := winio.DialPipeContext(ctx, candidate)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no discord ipc pipe found")
	}
	return nil, lastErr
}
