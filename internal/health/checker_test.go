package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChecker_Run(t *testing.T) {
	c := NewChecker(50 * time.Millisecond)
	if rep := c.Run(context.Background()); !rep.Ready() || len(rep.Checks) != 0 {
		t.Errorf("empty checker = %+v, want ready", rep)
	}

	c.Add("postgres", func(ctx context.Context) error { return nil })
	c.Add("redis", func(ctx context.Context) error { return errors.New("refused") })
	c.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rep := c.Run(context.Background())
	if rep.Ready() {
		t.Error("report should not be ready")
	}
	want := map[string]string{"postgres": StatusOK, "redis": StatusUnavailable, "slow": StatusUnavailable}
	for k, v := range want {
		if rep.Checks[k] != v {
			t.Errorf("checks[%s] = %q, want %q", k, rep.Checks[k], v)
		}
	}
	if got := c.Names(); len(got) != 3 || got[0] != "postgres" {
		t.Errorf("Names = %v", got)
	}
}
