package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	json "github.com/goccy/go-json"

	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

// run sends one message and waits for the server to push it back.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "session token")
	conversation := flag.Int64("conversation", 0, "conversation id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" || *conversation <= 0 {
		return errors.New("token and conversation are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+url.QueryEscape(*token), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	clientID := utils.NewConnID()
	if err := wsjson.Write(ctx, conn, proto.Inbound{
		Type:           proto.InboundTypeMessage,
		ConversationID: *conversation,
		Content:        *text,
		ClientID:       clientID,
	}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var env proto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("unmarshal envelope: %w", err)
		}
		fmt.Printf("Received event: type=%s\n", env.Type)

		switch env.Type {
		case proto.OutboundTypeNewMessage:
			var evt proto.NewMessage
			if err := json.Unmarshal(data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", data)
				return fmt.Errorf("unmarshal new_message: %w", err)
			}
			if evt.ClientID != clientID {
				continue
			}
			fmt.Printf("NewMessage: conversation=%d id=%d sender=%d text=%q at=%s\n",
				evt.ConversationID, evt.Message.ID, evt.Message.SenderID, evt.Message.Content, evt.Message.CreatedAt.Format(time.RFC3339Nano))
			return nil
		case proto.OutboundTypeError:
			var evt proto.Error
			if err := json.Unmarshal(data, &evt); err != nil {
				return fmt.Errorf("unmarshal error: %w", err)
			}
			return fmt.Errorf("server error %s: %s", evt.Code, evt.Message)
		default:
			// keep looping for our message
		}
	}
}
