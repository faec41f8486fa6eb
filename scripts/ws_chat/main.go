// Command ws_chat is an interactive terminal client. It sends over the
// websocket, listens for pushes and polls REST as a fallback, merging
// everything into one timeline.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/log"
	"github.com/vovakirdan/wirechat-fanout/internal/proto"
	"github.com/vovakirdan/wirechat-fanout/internal/reconcile"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
	"github.com/vovakirdan/wirechat-fanout/internal/utils"
)

type client struct {
	base           string
	token          string
	userID         int64
	conversationID int64
	timeline       *reconcile.Timeline
	http           *http.Client
	log            *zerolog.Logger
}

func main() {
	logger := log.New("info", "console")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("wschat failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	base := flag.String("addr", "http://localhost:8080", "server base URL")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "session token (see `wirechat-fanout token`)")
	conversation := flag.Int64("conversation", 0, "conversation id to chat in")
	poll := flag.Duration("poll", 10*time.Second, "REST poll interval")
	flag.Parse()

	if *token == "" || *conversation <= 0 {
		flag.Usage()
		return errors.New("token and conversation are required")
	}

	userID, err := tokenUser(*token)
	if err != nil {
		return err
	}

	c := &client{
		base:           strings.TrimRight(*base, "/"),
		token:          *token,
		userID:         userID,
		conversationID: *conversation,
		timeline:       reconcile.NewTimeline(),
		http:           &http.Client{Timeout: 10 * time.Second},
		log:            logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := c.pollOnce(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial history fetch failed")
	}
	c.print()

	fmt.Printf("Connected as user %d in conversation %d\n", c.userID, c.conversationID)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx, conn) })
	g.Go(func() error { return c.pollLoop(gctx, *poll) })
	g.Go(func() error { return c.writeLoop(gctx, conn) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// tokenUser reads the user id from the token without verifying it; the
// server does the verification.
func tokenUser(token string) (int64, error) {
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID <= 0 {
		return 0, errors.New("token carries no user id")
	}
	return claims.UserID, nil
}

func (c *client) wsURL() string {
	u := strings.Replace(c.base, "http", "ws", 1) + "/ws"
	return u + "?token=" + url.QueryEscape(c.token)
}

func (c *client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return io.EOF
			}
			return err
		}

		var env proto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn().Err(err).Msg("unreadable event")
			continue
		}

		switch env.Type {
		case proto.OutboundTypeNewMessage:
			var ev proto.NewMessage
			if err := json.Unmarshal(data, &ev); err != nil {
				c.log.Warn().Err(err).Msg("unmarshal new_message")
				continue
			}
			if ev.ConversationID != c.conversationID {
				fmt.Printf("(new message in conversation %d)\n", ev.ConversationID)
				continue
			}
			if c.timeline.ApplyPush(proto.MessageToStore(ev.Message), ev.ClientID) {
				c.print()
			}
		case proto.OutboundTypeTyping:
			var ev proto.Typing
			if err := json.Unmarshal(data, &ev); err == nil && ev.ConversationID == c.conversationID {
				fmt.Printf("user %d is typing...\n", ev.UserID)
			}
		case proto.OutboundTypeReadReceipt:
			var ev proto.ReadReceipt
			if err := json.Unmarshal(data, &ev); err == nil && ev.ConversationID == c.conversationID {
				fmt.Printf("user %d read message %d\n", ev.UserID, ev.MessageID)
			}
		case proto.OutboundTypeError:
			var ev proto.Error
			if err := json.Unmarshal(data, &ev); err == nil {
				fmt.Printf("error %s: %s\n", ev.Code, ev.Message)
			}
		default:
			fmt.Printf("event=%s %s\n", env.Type, data)
		}
	}
}

func (c *client) writeLoop(ctx context.Context, conn *websocket.Conn) error {
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
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return io.EOF
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if text == "/typing" {
				if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeTyping, ConversationID: c.conversationID}); err != nil {
					return fmt.Errorf("send typing: %w", err)
				}
				continue
			}

			tempID := utils.NewConnID()
			c.timeline.AddPending(tempID, c.conversationID, c.userID, text, time.Now().UTC())
			if err := wsjson.Write(ctx, conn, proto.Inbound{
				Type:           proto.InboundTypeMessage,
				ConversationID: c.conversationID,
				Content:        text,
				ClientID:       tempID,
			}); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
}

func (c *client) pollLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.pollOnce(ctx); err != nil {
				c.log.Warn().Err(err).Msg("poll failed")
			}
		}
	}
}

func (c *client) pollOnce(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/conversations/%d/messages", c.base, c.conversationID)
	if last := c.timeline.LastID(); last > 0 {
		endpoint += fmt.Sprintf("?after=%d", last)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var page []proto.Message
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}

	msgs := make([]*store.Message, 0, len(page))
	for _, m := range page {
		msgs = append(msgs, proto.MessageToStore(m))
	}
	if c.timeline.ApplyPoll(msgs) > 0 {
		c.print()
	}
	return nil
}

func (c *client) print() {
	for _, e := range c.timeline.Messages() {
		marker := ""
		if e.Pending() {
			marker = " (sending)"
		}
		fmt.Printf("[%s] user %d: %s%s\n", e.CreatedAt.Local().Format("15:04:05"), e.SenderID, e.Content, marker)
	}
	fmt.Println("---")
}
