package store

import (
	"context"
	"reflect"
	"time"
)

// DefaultPollInterval is used when Poll is given a non-positive interval.
const DefaultPollInterval = 100 * time.Millisecond

// Poll samples key every interval and sends the observed value whenever it
// differs from the previous one. An unset key is observed as def. The first
// observation is sent immediately. The channel closes when ctx is done.
func (s *Store) Poll(ctx context.Context, key string, def any, interval time.Duration) <-chan any {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	out := make(chan any)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		observe := func() any {
			if v := s.Get(key); v != nil {
				return v
			}
			return def
		}

		current := observe()
		if !send(ctx, out, current) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next := observe()
				if reflect.DeepEqual(next, current) {
					continue
				}
				current = next
				if !send(ctx, out, current) {
					return
				}
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- any, v any) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
