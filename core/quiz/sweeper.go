package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/masomo-lms/core"
)

// Sweeper periodically auto-submits expired attempts.
type Sweeper struct {
	svc      Service
	interval time.Duration
	logger   core.Logger
}

func NewSweeper(svc Service, conf *core.Config, logger core.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: conf.Quiz.SweepInterval, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.svc.SubmitExpired(ctx, core.Now())
	if err != nil && ctx.Err() == nil {
		s.logger.Error("sweeping expired attempts", err)
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("auto-submitted %d expired attempt(s)", n))
	}
	return n
}
