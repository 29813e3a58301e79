package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Change kinds carried on the events channel.
const (
	ChangeSeats = "seats_changed"
	ChangeEvent = "event_changed"
)

// EventsPubSub fans out "something about event N changed" notifications so
// read models and live seat-map streams observe transitions immediately.
type EventsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{
		rdb:     rdb,
		channel: ChannelEventsChanged(),
	}
}

type EventChange struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *EventsPubSub) publish(ctx context.Context, kind string, eventID int64) error {
	b, err := json.Marshal(EventChange{
		Type:    kind,
		EventID: eventID,
		TsUnix:  time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *EventsPubSub) PublishSeatsChanged(ctx context.Context, eventID int64) error {
	return p.publish(ctx, ChangeSeats, eventID)
}

func (p *EventsPubSub) PublishEventChanged(ctx context.Context, eventID int64) error {
	return p.publish(ctx, ChangeEvent, eventID)
}

// Subscribe blocks until ctx is done, invoking handler for every well-formed change.
func (p *EventsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ch EventChange)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev EventChange
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.EventID != 0 {
				handler(ctx, ev)
			}
		}
	}
}
