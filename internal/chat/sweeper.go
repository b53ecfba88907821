package chat

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"
)

// Sweeper runs the background summarization pass on a cron cadence. Summaries
// are best-effort in the foreground path; the sweeper guarantees every
// conversation eventually catches up even if its user stops chatting.
type Sweeper struct {
	history *History
	spec    string
	cron    *cron.Cron
}

// NewSweeper creates a summarization sweeper with a cron spec like
// "@every 5m".
func NewSweeper(history *History, spec string) *Sweeper {
	return &Sweeper{history: history, spec: spec}
}

// Start schedules the sweep. Returns an error only for a bad cron spec.
func (s *Sweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.spec, func() {
		s.history.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	logx.Infof("summary sweeper scheduled: %s", s.spec)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
