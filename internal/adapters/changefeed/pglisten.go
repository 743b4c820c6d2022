package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Channel is the NOTIFY channel raised by the change-feed triggers.
const Channel = "portal_changes"

// PGListener holds a dedicated connection LISTENing on Channel and
// republishes each notification on a hub.
type PGListener struct {
	dsn     string
	hub     *Hub
	backoff time.Duration
}

// NewPGListener creates a listener for dsn.
func NewPGListener(dsn string, hub *Hub) *PGListener {
	return &PGListener{dsn: dsn, hub: hub, backoff: time.Second}
}

// Run listens until ctx is done, reconnecting after connection errors.
// POST: Returns ctx.Err() once ctx is cancelled
func (l *PGListener) Run(ctx context.Context) error {
	wait := l.backoff
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Warn("changefeed_event",
			zap.String("event", "listener_disconnected"),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, 30*time.Second)
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	zap.L().Info("changefeed_event", zap.String("event", "listening"), zap.String("channel", Channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := ParseNotification(n.Payload)
		if err != nil {
			zap.L().Warn("changefeed_event", zap.String("event", "bad_payload"), zap.Error(err))
			continue
		}
		l.hub.Publish(c)
	}
}

// ParseNotification decodes a trigger payload.
func ParseNotification(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode notification: %w", err)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("decode notification: missing table")
	}
	c.At = c.At.UTC()
	return c, nil
}
