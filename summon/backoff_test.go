package summon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffAttempts(t *testing.T) {
	assert.Equal(t, 1, BackoffOptions{NumOfAttempts: 0}.Attempts())
	assert.Equal(t, 1, BackoffOptions{NumOfAttempts: -1}.Attempts())
	assert.Equal(t, 5, BackoffOptions{NumOfAttempts: 5}.Attempts())
}

func TestBackoffDelayBefore(t *testing.T) {
	base := BackoffOptions{StartingDelay: 300 * time.Millisecond, TimeMultiple: 2}
	delayFirst := base
	delayFirst.DelayFirstAttempt = true
	capped := base
	capped.MaxDelay = 500 * time.Millisecond

	tests := []struct {
		name    string
		backoff BackoffOptions
		attempt int
		want    time.Duration
	}{
		{"first attempt starts immediately", base, 1, 0},
		{"second attempt waits starting delay", base, 2, 300 * time.Millisecond},
		{"third attempt doubles", base, 3, 600 * time.Millisecond},
		{"fourth attempt doubles again", base, 4, 1200 * time.Millisecond},
		{"delay first attempt", delayFirst, 1, 300 * time.Millisecond},
		{"delay first attempt shifts", delayFirst, 2, 600 * time.Millisecond},
		{"max delay caps", capped, 4, 500 * time.Millisecond},
		{"zero starting delay", BackoffOptions{TimeMultiple: 2}, 3, 0},
		{"zero multiple keeps delay constant", BackoffOptions{StartingDelay: time.Second}, 4, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.DelayBefore(tt.attempt))
		})
	}
}

func TestBackoffDelayOverflow(t *testing.T) {
	b := BackoffOptions{StartingDelay: time.Hour, TimeMultiple: 1e6}
	assert.Positive(t, b.DelayBefore(50))
}

func TestBackoffFullJitter(t *testing.T) {
	b := BackoffOptions{StartingDelay: 100 * time.Millisecond, TimeMultiple: 2, Jitter: JitterFull}
	for range 100 {
		d := b.DelayBefore(3)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleep(ctx, 0), context.Canceled)
}
