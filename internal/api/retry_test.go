package api

import (
	"context"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.RetryableOn == nil {
		t.Error("RetryableOn is nil")
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	tests := []struct {
		name       string
		attempt    int
		statusCode int
		expected   bool
	}{
		{"first attempt, retryable", 0, 503, true},
		{"second attempt, retryable", 1, 503, true},
		{"max attempts reached", 2, 503, false},
		{"not found is final", 0, 404, false},
		{"forbidden is final", 0, 403, false},
		{"retryable 429", 0, 429, true},
		{"retryable 408", 0, 408, true},
		{"retryable 502", 0, 502, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cfg.ShouldRetry(tt.attempt, tt.statusCode)
			if result != tt.expected {
				t.Errorf("ShouldRetry(%d, %d) = %v, want %v",
					tt.attempt, tt.statusCode, result, tt.expected)
			}
		})
	}
}

func TestRetryConfig_ShouldRetry_NilPredicate(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3}
	if cfg.ShouldRetry(0, 503) {
		t.Error("ShouldRetry() = true without RetryableOn")
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{8, 5 * time.Second},
	}

	for _, tt := range tests {
		if delay := cfg.Delay(tt.attempt); delay != tt.expected {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, delay, tt.expected)
		}
	}
}

func TestRetryConfig_Delay_WithJitter(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.5,
	}

	for i := 0; i < 100; i++ {
		delay := cfg.Delay(0)
		if delay < 500*time.Millisecond || delay > 1500*time.Millisecond {
			t.Errorf("Delay(0) = %v, expected between 500ms and 1.5s", delay)
		}
	}
}

func TestRetryConfig_Wait(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	start := time.Now()
	if err := cfg.Wait(context.Background(), 0); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait() returned too early: %v", elapsed)
	}
}

func TestRetryConfig_Wait_ContextCancellation(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 10 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := cfg.Wait(ctx, 0)
	if err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Wait() took too long after cancellation: %v", elapsed)
	}
}

func BenchmarkRetryConfig_Delay(b *testing.B) {
	cfg := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Delay(i % 5)
	}
}
