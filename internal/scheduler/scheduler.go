package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron         *cron.Cron
	orchestrator *pipeline.Orchestrator
}

func New(spec string, o *pipeline.Orchestrator) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:         c,
		orchestrator: o,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动期的首批请求争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，API 手动触发采集时使用
func (s *Scheduler) RunOnce() *pipeline.RunSummary {
	log.Println("start collect run...")
	summary := s.orchestrator.RunOnce(context.Background())
	summary.Log()
	return summary
}

func (s *Scheduler) runOnce() {
	s.RunOnce()
}

func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}
