package testing

import (
	"context"
	"testing"
	"time"

	"github.com/imamik/vcdflow/internal/config"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FastTimeouts returns timeouts with millisecond poll intervals and no
// deadlines, so workflows against the simulator finish quickly.
func FastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		TaskPollInterval:     time.Millisecond,
		IdleInterval:         time.Millisecond,
		MaterializeInterval:  time.Millisecond,
		UndeployPollInterval: time.Millisecond,
		DeleteRetryDelay:     time.Millisecond,
		DeleteRetryMax:       10,
		FinalizeTimeout:      10 * time.Second,
	}
}
