package risk

import (
	"context"
	"sort"
	"time"
)

// NewsEvent is one calendar entry from the external news collaborator.
// Only high-impact events participate in blackout decisions.
type NewsEvent struct {
	Title      string    `json:"title"`
	Currency   string    `json:"currency"`
	Importance int       `json:"importance"` // 1 = high impact
	Time       time.Time `json:"time"`
}

// EventSource is the external news-calendar collaborator. Out of scope
// here beyond the interface; the gate only consumes its events.
type EventSource interface {
	HighImpactEvents(ctx context.Context, from, to time.Time, currencies []string) ([]NewsEvent, error)
}

type NewsWindowConfig struct {
	BlockBefore time.Duration
	BlockAfter  time.Duration
}

func NewNewsWindowConfig(blockBefore, blockAfter time.Duration) NewsWindowConfig {
	return NewsWindowConfig{BlockBefore: blockBefore, BlockAfter: blockAfter}
}

type NewsDecision struct {
	Allowed         bool
	Reason          string
	NowUTC          time.Time
	BlockingEvent   *NewsEvent
	BlockWindowFrom time.Time
	BlockWindowTo   time.Time
	NextAllowedUTC  time.Time
}

// CanEnterTradeAt blocks entries if now falls within
// [eventTime-BlockBefore, eventTime+BlockAfter] for any high-impact event.
// Deterministic for tests; callers pass time.Now().UTC().
func CanEnterTradeAt(nowUTC time.Time, events []NewsEvent, cfg NewsWindowConfig) NewsDecision {
	type window struct {
		ev    NewsEvent
		start time.Time
		end   time.Time
	}

	var active []window

	for _, ev := range events {
		evTime := ev.Time.UTC()
		if evTime.IsZero() {
			continue
		}

		start := evTime.Add(-cfg.BlockBefore)
		end := evTime.Add(cfg.BlockAfter)

		if !nowUTC.Before(start) && !nowUTC.After(end) {
			active = append(active, window{ev: ev, start: start, end: end})
		}
	}

	if len(active) == 0 {
		return NewsDecision{
			Allowed: true,
			Reason:  "allowed",
			NowUTC:  nowUTC,
		}
	}

	// If multiple windows overlap now, wait until the latest end.
	sort.Slice(active, func(i, j int) bool {
		return active[i].end.Before(active[j].end)
	})
	block := active[len(active)-1]

	return NewsDecision{
		Allowed:         false,
		Reason:          "blocked_by_news_window",
		NowUTC:          nowUTC,
		BlockingEvent:   &block.ev,
		BlockWindowFrom: block.start,
		BlockWindowTo:   block.end,
		NextAllowedUTC:  block.end,
	}
}
