package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SportsNations/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PipelineRun 一次定时运行的结果
type PipelineRun struct {
	StartedAt  time.Time
	SeasonYear int
	Outcomes   []*IngestOutcome
	Validation *ValidationReport
	Err        error
}

// RunSummary 对外展示的运行摘要
type RunSummary struct {
	StartedAt  time.Time        `json:"started_at_utc"`
	SeasonYear int              `json:"season_year"`
	Outcomes   []*IngestOutcome `json:"outcomes"`
	Passed     bool             `json:"validation_passed"`
	Failed     int              `json:"failed_checks"`
	Error      string           `json:"error,omitempty"`
}

// Summary 运行摘要
func (r *PipelineRun) Summary() RunSummary {
	sum := RunSummary{StartedAt: r.StartedAt, SeasonYear: r.SeasonYear, Outcomes: r.Outcomes}
	if r.Validation != nil {
		sum.Passed = r.Validation.Passed
		sum.Failed = r.Validation.Failed()
	}
	if r.Err != nil {
		sum.Error = r.Err.Error()
	}
	return sum
}

// Scheduler 定时顺序抓取已启用的 connector，随后做一次全库校验；同一时间只跑一个流水线
type Scheduler struct {
	ingest    *IngestService
	validator *Validator
	cfg       config.ScheduleConfig
	logger    *logrus.Logger
	cron      *cron.Cron
	now       func() time.Time

	mu   sync.Mutex
	last *PipelineRun
}

func NewScheduler(ingest *IngestService, validator *Validator, cfg config.ScheduleConfig, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		ingest:    ingest,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Start 注册 cron 表达式并启动；表达式为空时不调度
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron == "" {
		s.logger.Info("未配置 schedule.cron，定时抓取关闭")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("解析cron表达式%q失败: %w", s.cfg.Cron, err)
	}
	s.cron.Start()
	s.logger.WithField("cron", s.cfg.Cron).Info("定时抓取已启动")
	return nil
}

// Stop 停止调度并等待正在运行的流水线结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("定时抓取已停止")
}

// RunOnce 抓取年份 = 当前年 + year_offset
func (s *Scheduler) RunOnce(ctx context.Context) *PipelineRun {
	started := s.now()
	run := &PipelineRun{StartedAt: started, SeasonYear: started.Year() + s.cfg.YearOffset}
	log := s.logger.WithFields(logrus.Fields{"year": run.SeasonYear, "connectors": s.cfg.EnabledConnectors})
	log.Info("定时流水线开始")

	run.Outcomes, run.Err = s.ingest.IngestAll(ctx, run.SeasonYear, s.cfg.EnabledConnectors)
	if run.Err != nil {
		log.WithError(run.Err).Error("定时抓取中断")
	}
	run.Validation = s.validator.Run(ctx)

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()
	log.WithFields(logrus.Fields{
		"ingested": len(run.Outcomes),
		"passed":   run.Validation.Passed,
		"elapsed":  time.Since(started).String(),
	}).Info("定时流水线结束")
	return run
}

// Last 最近一次运行
func (s *Scheduler) Last() *PipelineRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
