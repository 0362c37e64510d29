package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_NowMonotonic(t *testing.T) {
	c := New()
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}

func TestFake_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	f := NewFake(start)
	f.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), f.Now())
}

func TestFake_TickerFiresWhenDue(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Advance(500 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	f.Advance(500 * time.Millisecond)
	select {
	case got := <-tk.C():
		assert.Equal(t, time.Unix(1, 0), got)
	default:
		t.Fatal("ticker did not fire")
	}
}

func TestFake_LongAdvanceCoalesces(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Advance(45 * time.Second)
	require.Len(t, tk.C(), 1)
	<-tk.C()

	f.Advance(time.Second)
	assert.Len(t, tk.C(), 1, "next tick is scheduled relative to the advanced time")
}

func TestFake_StopRemovesTicker(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	assert.Equal(t, 1, f.Tickers())
	tk.Stop()
	assert.Equal(t, 0, f.Tickers())

	f.Advance(2 * time.Second)
	assert.Len(t, tk.C(), 0)
}
