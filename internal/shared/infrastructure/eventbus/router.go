package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Router matches events to consumers by routing key pattern.
type Router struct {
	mu     sync.RWMutex
	routes []route
	logger *slog.Logger
}

type route struct {
	pattern  string
	consumer EventConsumer
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Register adds consumer under each of its patterns.
func (r *Router) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		r.routes = append(r.routes, route{pattern: pattern, consumer: consumer})
		r.logger.Debug("registered event consumer", "pattern", pattern)
	}
}

// Patterns returns the distinct registered patterns, sorted. The broker
// consumer binds its queue to each.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.routes))
	var out []string
	for _, rt := range r.routes {
		if _, ok := seen[rt.pattern]; ok {
			continue
		}
		seen[rt.pattern] = struct{}{}
		out = append(out, rt.pattern)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered routes.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// match returns each consumer matching key once, in registration order.
func (r *Router) match(key string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []EventConsumer
	seen := make(map[EventConsumer]struct{})
	for _, rt := range r.routes {
		if !MatchTopic(rt.pattern, key) {
			continue
		}
		if _, ok := seen[rt.consumer]; ok {
			continue
		}
		seen[rt.consumer] = struct{}{}
		out = append(out, rt.consumer)
	}
	return out
}

// Dispatch hands event to every matching consumer. All consumers run even
// when one fails; the failures are joined.
func (r *Router) Dispatch(ctx context.Context, event *Event) error {
	consumers := r.match(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.Debug("no consumers for event", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, consumer := range consumers {
		if err := consumer.Handle(ctx, event); err != nil {
			r.logger.Error("consumer failed to handle event",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MatchTopic reports whether key matches pattern under topic exchange
// rules.
func MatchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
