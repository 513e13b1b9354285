package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirespace-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_walk: %v", err)
		os.Exit(1)
	}
}

// position tracks where the server last said we are.
type position struct {
	mu sync.Mutex
	p  proto.Point
}

func (p *position) get() proto.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.p
}

func (p *position) set(pt proto.Point) {
	p.mu.Lock()
	p.p = pt
	p.mu.Unlock()
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "optional token")
	space := flag.String("space", "lobby", "space to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	target := *addr
	if *token != "" {
		target += "?token=" + url.QueryEscape(*token)
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.JoinData{SpaceID: *space})
	if err != nil {
		return fmt.Errorf("marshal join: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Payload: payload}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s, joining %s\n", *addr, *space)
	fmt.Println("Type w/a/s/d and press Enter to move. Ctrl+C to exit.")

	pos := &position{}
	go func() {
		defer cancel()
		readLoop(ctx, conn, pos)
	}()

	writeLoop(ctx, conn, pos)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, pos *position) {
	for {
		var in struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				fmt.Println("server closed the connection")
				return
			case websocket.StatusPolicyViolation:
				fmt.Println("space not found")
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch in.Type {
		case proto.OutboundTypeSpaceJoined:
			var evt proto.SpaceJoinedData
			if err := json.Unmarshal(in.Payload, &evt); err != nil {
				log.Printf("unmarshal %s: %v", in.Type, err)
				continue
			}
			pos.set(evt.Spawn)
			fmt.Printf("joined as %s at (%d,%d)\n", evt.UserID, evt.Spawn.X, evt.Spawn.Y)
			for _, u := range evt.Users {
				fmt.Printf("  %s is at (%d,%d)\n", label(u.UserID, u.Name), u.X, u.Y)
			}
		case proto.OutboundTypeUserJoined:
			var evt proto.UserState
			if err := json.Unmarshal(in.Payload, &evt); err != nil {
				log.Printf("unmarshal %s: %v", in.Type, err)
				continue
			}
			fmt.Printf("%s joined at (%d,%d)\n", label(evt.UserID, evt.Name), evt.X, evt.Y)
		case proto.OutboundTypeMovement:
			var evt proto.MovementData
			if err := json.Unmarshal(in.Payload, &evt); err != nil {
				log.Printf("unmarshal %s: %v", in.Type, err)
				continue
			}
			fmt.Printf("%s moved to (%d,%d)\n", evt.UserID, evt.X, evt.Y)
		case proto.OutboundTypeMovementRejected:
			var evt proto.MovementRejectedData
			if err := json.Unmarshal(in.Payload, &evt); err != nil {
				log.Printf("unmarshal %s: %v", in.Type, err)
				continue
			}
			pos.set(proto.Point{X: evt.X, Y: evt.Y})
			fmt.Printf("move rejected (%s), back at (%d,%d)\n", evt.Reason, evt.X, evt.Y)
		case proto.OutboundTypeUserLeft:
			var evt proto.UserLeftData
			if err := json.Unmarshal(in.Payload, &evt); err != nil {
				log.Printf("unmarshal %s: %v", in.Type, err)
				continue
			}
			fmt.Printf("%s left\n", evt.UserID)
		default:
			fmt.Printf("%s %s\n", in.Type, in.Payload)
		}
	}
}

func label(id, name string) string {
	if name == "" {
		return id
	}
	return name + " (" + id + ")"
}

var steps = map[string]proto.Point{
	"w": {X: 0, Y: -1},
	"s": {X: 0, Y: 1},
	"a": {X: -1, Y: 0},
	"d": {X: 1, Y: 0},
}

func writeLoop(ctx context.Context, conn *websocket.Conn, pos *position) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			step, known := steps[strings.ToLower(strings.TrimSpace(line))]
			if !known {
				continue
			}

			cur := pos.get()
			next := proto.Point{X: cur.X + step.X, Y: cur.Y + step.Y}
			payload, err := json.Marshal(next)
			if err != nil {
				log.Printf("marshal move: %v", err)
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMove, Payload: payload}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
			// Optimistic; a rejection resets it.
			pos.set(next)
		}
	}
}
