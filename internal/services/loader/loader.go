// Package loader drives infinite-scroll lists until an end marker, an item
// ceiling, or an attempt budget is reached.
package loader

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
)

// ListView is a scrollable list on a page
type ListView interface {
	// ReachedEnd reports whether the list shows its end marker
	ReachedEnd(ctx context.Context) (bool, error)
	ItemCount(ctx context.Context) (int, error)
	// ExpandMore clicks "show more replies" controls, skipping those announcing more than threshold replies (0 = never skip)
	ExpandMore(ctx context.Context, threshold int) (clicked, skipped int, err error)
	Scroll(ctx context.Context, deltaY float64) error
	JumpToBottom(ctx context.Context) error
}

// Speed selects the pause between scroll steps
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// Interval is the pause after each scroll step; unknown speeds are normal
func (s Speed) Interval() time.Duration {
	switch s {
	case SpeedSlow:
		return 1100 * time.Millisecond
	case SpeedFast:
		return 350 * time.Millisecond
	default:
		return 650 * time.Millisecond
	}
}

const (
	scrollStep         = 900
	expandEvery        = 3
	stagnationLimit    = 20
	jumpSettle         = 900 * time.Millisecond
	unboundedAttempts  = 300
	attemptsPerCeiling = 3
)

// Options controls one Load
type Options struct {
	Ceiling        int // stop once this many items are present; 0 = unbounded
	Speed          Speed
	ExpandReplies  bool
	ReplyThreshold int
}

// MaxAttempts is the step budget for these options
func (o Options) MaxAttempts() int {
	if o.Ceiling > 0 {
		return o.Ceiling * attemptsPerCeiling
	}
	return unboundedAttempts
}

// StopReason says why a Load ended
type StopReason string

const (
	StopEndMarker StopReason = "end_marker"
	StopCeiling   StopReason = "ceiling"
	StopExhausted StopReason = "attempts_exhausted"
	StopCancelled StopReason = "cancelled"
)

// Result summarizes a Load
type Result struct {
	Steps    int
	Items    int
	Jumps    int
	Expanded int
	Skipped  int
	Reason   StopReason
}

// Loader scrolls a ListView step by step
type Loader struct {
	logger arbor.ILogger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(logger arbor.ILogger) *Loader {
	return &Loader{
		logger: logger,
		sleep:  common.Sleep,
	}
}

// Load scrolls view until it ends, reaches opts.Ceiling, or uses up its attempts.
// Errors from individual steps are logged and skipped; only cancellation of ctx
// is returned.
func (l *Loader) Load(ctx context.Context, view ListView, opts Options) (Result, error) {
	interval := opts.Speed.Interval()
	maxAttempts := opts.MaxAttempts()

	var res Result
	stagnant := 0
	lastCount := 0

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Reason = StopCancelled
			return res, ctx.Err()
		}

		if end, err := view.ReachedEnd(ctx); err != nil {
			l.logger.Debug().Err(err).Int("attempt", attempt).Msg("End marker check failed")
		} else if end {
			res.Reason = StopEndMarker
			l.recount(ctx, view, &res)
			return l.done(res), nil
		}

		count, err := view.ItemCount(ctx)
		if err != nil {
			l.logger.Debug().Err(err).Int("attempt", attempt).Msg("Item count failed")
			count = 0
		}
		res.Items = count
		if opts.Ceiling > 0 && count >= opts.Ceiling {
			res.Reason = StopCeiling
			return l.done(res), nil
		}

		if count != lastCount {
			lastCount = count
			stagnant = 0
		} else {
			stagnant++
		}

		if opts.ExpandReplies && attempt%expandEvery == 0 {
			clicked, skipped, err := view.ExpandMore(ctx, opts.ReplyThreshold)
			if err != nil {
				l.logger.Debug().Err(err).Int("attempt", attempt).Msg("Expanding replies failed")
			}
			res.Expanded += clicked
			res.Skipped += skipped
		}

		if err := view.Scroll(ctx, scrollStep); err != nil {
			l.logger.Debug().Err(err).Int("attempt", attempt).Msg("Scroll failed")
		}
		res.Steps++
		if err := l.sleep(ctx, interval); err != nil {
			res.Reason = StopCancelled
			return res, err
		}

		if stagnant > stagnationLimit {
			if err := view.JumpToBottom(ctx); err != nil {
				l.logger.Debug().Err(err).Msg("Jump to bottom failed")
			}
			res.Jumps++
			if err := l.sleep(ctx, jumpSettle); err != nil {
				res.Reason = StopCancelled
				return res, err
			}
			stagnant = 0
		}
	}

	res.Reason = StopExhausted
	l.recount(ctx, view, &res)
	return l.done(res), nil
}

// recount refreshes res.Items after the last scroll; a failed read keeps the previous count
func (l *Loader) recount(ctx context.Context, view ListView, res *Result) {
	count, err := view.ItemCount(ctx)
	if err != nil {
		l.logger.Debug().Err(err).Msg("Final item count failed")
		return
	}
	res.Items = count
}

func (l *Loader) done(res Result) Result {
	l.logger.Debug().
		Str("reason", string(res.Reason)).
		Int("steps", res.Steps).
		Int("items", res.Items).
		Int("expanded", res.Expanded).
		Int("skipped", res.Skipped).
		Msg("List loading finished")
	return res
}
