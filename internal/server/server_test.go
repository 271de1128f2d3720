package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingTimeout(t *testing.T) {
	assert.Equal(t, 3*time.Second, RemainingTimeout(context.Background(), 3*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	remaining := RemainingTimeout(ctx, time.Hour)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, time.Second)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, time.Duration(0), RemainingTimeout(expired, time.Hour))
}
