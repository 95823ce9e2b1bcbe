package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// growingList gains growth items per scroll
type growingList struct {
	count     int
	growth    int
	endAfter  int // scrolls before the end marker shows; 0 = never
	scrolls   int
	jumps     int
	expands   []int
	scrollErr error
}

func (g *growingList) ReachedEnd(ctx context.Context) (bool, error) {
	return g.endAfter > 0 && g.scrolls >= g.endAfter, nil
}

func (g *growingList) ItemCount(ctx context.Context) (int, error) {
	return g.count, nil
}

func (g *growingList) ExpandMore(ctx context.Context, threshold int) (int, int, error) {
	g.expands = append(g.expands, threshold)
	return 1, 0, nil
}

func (g *growingList) Scroll(ctx context.Context, deltaY float64) error {
	g.scrolls++
	g.count += g.growth
	return g.scrollErr
}

func (g *growingList) JumpToBottom(ctx context.Context) error {
	g.jumps++
	return nil
}

type sleepLog struct {
	durations []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.durations = append(s.durations, d)
	return ctx.Err()
}

func newTestLoader() (*Loader, *sleepLog) {
	l := New(arbor.NewLogger())
	log := &sleepLog{}
	l.sleep = log.sleep
	return l, log
}

func TestLoad_StopsAtCeiling(t *testing.T) {
	l, sleeps := newTestLoader()
	view := &growingList{growth: 1}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 5, Speed: SpeedFast})
	require.NoError(t, err)

	assert.Equal(t, StopCeiling, res.Reason)
	assert.Equal(t, 5, res.Items)
	assert.Equal(t, 5, res.Steps)
	assert.Equal(t, 5, view.scrolls)
	assert.Len(t, sleeps.durations, 5)
	for _, d := range sleeps.durations {
		assert.Equal(t, 350*time.Millisecond, d)
	}
}

func TestLoad_EndMarkerStopsBeforeCeiling(t *testing.T) {
	l, _ := newTestLoader()
	view := &growingList{growth: 1, endAfter: 2}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 50})
	require.NoError(t, err)
	assert.Equal(t, StopEndMarker, res.Reason)
	assert.Equal(t, 2, view.scrolls)
}

func TestLoad_UnboundedStagnantListJumpsAndExhausts(t *testing.T) {
	l, sleeps := newTestLoader()
	view := &growingList{}

	res, err := l.Load(context.Background(), view, Options{})
	require.NoError(t, err)

	assert.Equal(t, StopExhausted, res.Reason)
	assert.Equal(t, 300, res.Steps)
	// Jumps happen once stagnation exceeds 20 steps, then the counter resets
	assert.Equal(t, 14, view.jumps)
	assert.Equal(t, 14, res.Jumps)

	jumpSleeps := 0
	for _, d := range sleeps.durations {
		if d == 900*time.Millisecond {
			jumpSleeps++
		} else {
			assert.Equal(t, 650*time.Millisecond, d)
		}
	}
	assert.Equal(t, 14, jumpSleeps)
}

func TestLoad_AttemptBudgetFollowsCeiling(t *testing.T) {
	l, _ := newTestLoader()
	view := &growingList{}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 4, Speed: SpeedSlow})
	require.NoError(t, err)
	assert.Equal(t, StopExhausted, res.Reason)
	assert.Equal(t, 12, res.Steps)
}

func TestLoad_ExhaustedReportsCountAfterLastScroll(t *testing.T) {
	l, _ := newTestLoader()
	// grows by one every fourth scroll, too slowly to reach the ceiling within 12 steps
	view := &slowList{every: 4}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 4})
	require.NoError(t, err)
	assert.Equal(t, StopExhausted, res.Reason)
	assert.Equal(t, 12, res.Steps)
	assert.Equal(t, 3, view.count)
	assert.Equal(t, 3, res.Items)
}

func TestLoad_EndMarkerReportsCountAfterLastScroll(t *testing.T) {
	l, _ := newTestLoader()
	view := &growingList{growth: 2, endAfter: 3}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 50})
	require.NoError(t, err)
	assert.Equal(t, StopEndMarker, res.Reason)
	assert.Equal(t, 6, res.Items)
}

// slowList gains one item on every nth scroll
type slowList struct {
	growingList
	every int
}

func (s *slowList) Scroll(ctx context.Context, deltaY float64) error {
	s.scrolls++
	if s.scrolls%s.every == 0 {
		s.count++
	}
	return nil
}

func TestLoad_ExpandsEveryThirdStep(t *testing.T) {
	l, _ := newTestLoader()
	view := &growingList{growth: 1}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 7, ExpandReplies: true, ReplyThreshold: 10})
	require.NoError(t, err)

	// attempts 0, 3 and 6
	assert.Equal(t, []int{10, 10, 10}, view.expands)
	assert.Equal(t, 3, res.Expanded)
}

func TestLoad_StepErrorsAreSwallowed(t *testing.T) {
	l, _ := newTestLoader()
	view := &growingList{growth: 1, scrollErr: errors.New("mouse detached")}

	res, err := l.Load(context.Background(), view, Options{Ceiling: 3})
	require.NoError(t, err)
	assert.Equal(t, StopCeiling, res.Reason)
}

func TestLoad_Cancelled(t *testing.T) {
	l, _ := newTestLoader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := l.Load(ctx, &growingList{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCancelled, res.Reason)
	assert.Equal(t, 0, res.Steps)
}

type mockView struct {
	mock.Mock
}

func (m *mockView) ReachedEnd(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockView) ItemCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockView) ExpandMore(ctx context.Context, threshold int) (int, int, error) {
	args := m.Called(ctx, threshold)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockView) Scroll(ctx context.Context, deltaY float64) error {
	return m.Called(ctx, deltaY).Error(0)
}

func (m *mockView) JumpToBottom(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestLoad_CountErrorsTreatedAsEmpty(t *testing.T) {
	l, _ := newTestLoader()
	view := &mockView{}
	view.On("ReachedEnd", mock.Anything).Return(false, nil)
	view.On("ItemCount", mock.Anything).Return(0, errors.New("detached")).Times(2)
	view.On("ItemCount", mock.Anything).Return(2, nil)
	view.On("Scroll", mock.Anything, float64(900)).Return(nil)

	res, err := l.Load(context.Background(), view, Options{Ceiling: 2})
	require.NoError(t, err)
	assert.Equal(t, StopCeiling, res.Reason)
	assert.Equal(t, 2, res.Steps)
	view.AssertNumberOfCalls(t, "Scroll", 2)
	view.AssertNotCalled(t, "ExpandMore", mock.Anything, mock.Anything)
}

func TestSpeedInterval(t *testing.T) {
	assert.Equal(t, 1100*time.Millisecond, SpeedSlow.Interval())
	assert.Equal(t, 650*time.Millisecond, SpeedNormal.Interval())
	assert.Equal(t, 350*time.Millisecond, SpeedFast.Interval())
	assert.Equal(t, 650*time.Millisecond, Speed("").Interval())
}
