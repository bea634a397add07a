package retry

import (
	"testing"
	"time"

	"github.com/erauner12/syncengine/internal/config"
)

func TestDelayDoublesUntilCap(t *testing.T) {
	cfg := config.Default()
	cfg.RetryDelayBase = time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, MaxInterval},
		{7, MaxInterval},
	}

	for _, tt := range tests {
		if got := Delay(cfg, tt.attempt); got != tt.want {
			t.Errorf("Delay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayClampsNonPositiveAttempt(t *testing.T) {
	cfg := config.Default()
	cfg.RetryDelayBase = time.Second

	if got := Delay(cfg, 0); got != time.Second {
		t.Errorf("Delay(0) = %v, want base delay", got)
	}
}

func TestPolicyRespectsMaxRetries(t *testing.T) {
	cfg := config.Default()
	cfg.MaxRetries = 2

	p := Policy(cfg)
	attempts := 0
	for {
		d := p.NextBackOff()
		if d < 0 {
			break
		}
		attempts++
		if attempts > 10 {
			t.Fatal("backoff policy did not respect MaxRetries")
		}
	}
	if attempts != cfg.MaxRetries {
		t.Errorf("attempts = %d, want %d", attempts, cfg.MaxRetries)
	}
}
