package mcp

import (
	"context"
	"os"
	"time"

	"prowaudit/internal/logging"
)

// parentPollInterval is how often the watchdog checks the parent PID.
var parentPollInterval = 2 * time.Second

// WatchParent monitors for parent process death in a background goroutine and
// calls cancelFn when the parent PID changes. MCP clients that crash or
// restart would otherwise leave the stdio server running forever.
//
// This must NOT read from stdin; the SDK's StdioTransport owns stdin
// exclusively and any byte consumed here corrupts the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	log := logging.New("mcp-watchdog")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(parentPollInterval):
				if os.Getppid() != ppid {
					log.Warn("parent process died, shutting down", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
