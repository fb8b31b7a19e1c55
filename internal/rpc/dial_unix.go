//go:build !windows

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

const maxPipeIndex = 10

// socketDirs lists where the Discord client creates its IPC sockets, in lookup order.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")

	expanded := make([]string, 0, len(dirs)*3)
	for _, dir := range dirs {
		expanded = append(expanded,
			dir,
			filepath.Join(dir, "app", "com.discordapp.Discord"),
			filepath.Join(dir, "snap.discord"),
		)
	}
	return expanded
}

// SocketCandidates returns every path dialIPC tries when no explicit path is configured.
func SocketCandidates() []string {
	var paths []string
	for _, dir := range socketDirs() {
		for i := 0; i < maxPipeIndex; i++ {
			paths = append(paths, filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return paths
}

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	if path != "" {
		return d.DialContext(ctx, "unix", path)
	}

	var lastErr error
	for _, candidate := range SocketCandidates() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		conn, err := d.DialContext(ctx, "unix", candidate)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no discord ipc socket found")
	}
	return nil, lastErr
}
