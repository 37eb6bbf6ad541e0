package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/ethsign"
)

const DefaultEventChannel = "ethsign:events"

// SignalService fans engine events out over redis pub/sub.
type SignalService struct {
	rdb     *redis.Client
	channel string
}

func NewSignalService(redisClient *redis.Client, channel string) *SignalService {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &SignalService{
		rdb:     redisClient,
		channel: channel,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event ethsign.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "Signal.Service.Publish")
	}

	return nil
}

// Emit publishes to the configured channel.
func (s *SignalService) Emit(ctx context.Context, event ethsign.Event) error {
	return s.Publish(ctx, s.channel, event)
}

// Subscribe delivers events on the configured channel until ctx is done.
// Messages that do not decode are skipped.
func (s *SignalService) Subscribe(ctx context.Context) (<-chan ethsign.Event, error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "Signal.Service.Subscribe")
	}

	out := make(chan ethsign.Event)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event ethsign.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.WarnContext(ctx, "malformed event", slog.String("error", err.Error()), slog.String("module", "signal"))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
