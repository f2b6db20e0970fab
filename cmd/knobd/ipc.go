package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"knobd/internal/protocol"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Lets knobctl and scripts reset the decoder, inject raw samples and query
// counters.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "request_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}} or {"status": "error", "error": "msg"}
// ============================================================================

// requestHandler executes decoded IPC requests.
type requestHandler interface {
	Handle(req protocol.Request) (json.RawMessage, error)
}

// runIPCServer serves the Unix domain socket until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, h requestHandler, logger *slog.Logger) error {
	// Remove a stale socket left by a previous run
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, h, logger)
	}
}

// handleIPCConnection serves one client until it disconnects
func handleIPCConnection(conn net.Conn, h requestHandler, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		resp := handleIPCLine(line, h)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func handleIPCLine(line string, h requestHandler) protocol.Response {
	req, err := protocol.UnmarshalRequest([]byte(line))
	if err != nil {
		return protocol.Response{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}
	data, err := h.Handle(req)
	if err != nil {
		return protocol.Response{Status: "error", Error: err.Error()}
	}
	return protocol.Response{Status: "ok", Data: data}
}
