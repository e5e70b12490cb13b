package cloudtunnel

import (
	"testing"
	"time"
)

func TestBackoffDelaySequence(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{7, 64 * time.Second}, // capped
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		got := backoffDelay(c.attempt)
		want := c.want
		if want > 60*time.Second {
			want = 60 * time.Second
		}
		if got != want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.attempt, got, want)
		}
	}
}
