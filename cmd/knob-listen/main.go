package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"knobd/internal/protocol"
)

func main() {
	var (
		wsURL = flag.String("url", "ws://127.0.0.1:8091/ws", "knobd event stream URL")
		raw   = flag.Bool("raw", false, "Print frames as received instead of one summary line each")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	// Handle shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// The daemon pings every 20s; answer its pings and keep our own deadline fresh.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			fmt.Println(formatFrame(message))
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

type wireFrame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// formatFrame renders one event frame as a single line.
func formatFrame(message []byte) string {
	var f wireFrame
	if err := json.Unmarshal(message, &f); err != nil {
		return fmt.Sprintf("[TEXT] %s", string(message))
	}

	ts := ""
	if f.Ts != nil {
		ts = f.Ts.Local().Format("15:04:05.000") + " "
	}

	switch f.Type {
	case protocol.FrameHello:
		var h protocol.HelloData
		if err := json.Unmarshal(f.Data, &h); err == nil {
			return fmt.Sprintf("%s[HELLO] knobd v%s source=%s", ts, h.Version, h.Source)
		}

	case protocol.FrameRotation:
		var r protocol.RotationData
		if err := json.Unmarshal(f.Data, &r); err == nil {
			line := fmt.Sprintf("%s[ROTATION] %s x%d", ts, r.Direction, r.Steps)
			if r.Fast {
				line += fmt.Sprintf(" fast (x%.1f)", r.Multiplier)
			}
			return line
		}

	case protocol.FramePress:
		var p protocol.PressData
		if err := json.Unmarshal(f.Data, &p); err == nil {
			return fmt.Sprintf("%s[PRESS] %s", ts, p.State)
		}
	}

	return fmt.Sprintf("%s[%s] %s", ts, f.Type, string(f.Data))
}
