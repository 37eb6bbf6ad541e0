package service

import (
	"context"
	"sync"

	"github.com/totegamma/ethsign"
)

// LocalSignalService fans events out to in-process subscribers. It is used
// when no redis is configured. Slow subscribers drop events instead of
// blocking writers.
type LocalSignalService struct {
	mu   sync.Mutex
	subs map[chan ethsign.Event]struct{}
}

func NewLocalSignalService() *LocalSignalService {
	return &LocalSignalService{subs: make(map[chan ethsign.Event]struct{})}
}

func (s *LocalSignalService) Emit(ctx context.Context, event ethsign.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (s *LocalSignalService) Subscribe(ctx context.Context) (<-chan ethsign.Event, error) {
	ch := make(chan ethsign.Event, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}
