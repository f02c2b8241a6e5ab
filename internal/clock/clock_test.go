package clock

import (
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	start := time.Date(1991, 10, 5, 18, 53, 0, 0, time.UTC)
	c := NewFake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("wanted %s, got: %s", start, got)
	}

	c.Advance(60 * time.Second)
	if got, want := c.Now(), start.Add(time.Minute); !got.Equal(want) {
		t.Errorf("wanted %s after advance, got: %s", want, got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("wanted %s after set, got: %s", start, got)
	}
}

func TestOrReal(t *testing.T) {
	if _, ok := OrReal(nil).(Real); !ok {
		t.Error("nil clock was not replaced with the system clock")
	}

	f := Func(func() time.Time { return time.Unix(42, 0) })
	if got := OrReal(f).Now().Unix(); got != 42 {
		t.Errorf("wanted the supplied clock to be kept, got unix time %d", got)
	}
}
