package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SportsNations/internal/adapter"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/metrics"
	"SportsNations/internal/model"
	"SportsNations/internal/repository"
	"SportsNations/internal/utils/ident"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IngestOutcome 单次抓取（connector + 年份）的结果
type IngestOutcome struct {
	ConnectorID string              `json:"connector_id"`
	SeasonYear  int                 `json:"season_year"`
	RunID       string              `json:"run_id"`
	ImportID    string              `json:"import_id"`
	Status      model.ImportStatus  `json:"status"`
	Origin      model.FetchOrigin   `json:"origin,omitempty"`
	RawPath     string              `json:"raw_path,omitempty"`
	Report      *model.UpsertReport `json:"report,omitempty"`
	Err         error               `json:"-"`
	Error       string              `json:"error,omitempty"`
}

// IngestService 驱动单个 connector 完成 fetch → parse → upsert，并写入 raw_imports
type IngestService struct {
	store    *repository.Store
	registry *adapter.Registry
	cfg      *config.Config
	logger   *logrus.Logger
	now      func() time.Time
}

func NewIngestService(store *repository.Store, registry *adapter.Registry, cfg *config.Config, logger *logrus.Logger) *IngestService {
	return &IngestService{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest 抓取一个 connector 的一个年份。
// 返回的 error 只表示无法记录本次尝试（未知 connector、存储故障）；
// connector 自身的失败体现在 IngestOutcome.Status/Err 中，并且已写入 raw_imports。
func (s *IngestService) Ingest(ctx context.Context, connectorID string, seasonYear int) (*IngestOutcome, error) {
	if seasonYear <= 0 {
		return nil, fmt.Errorf("%w: 年份必须为正数，收到 %d", model.ErrInvalidInput, seasonYear)
	}
	// 1. 查找 connector（未知 id 不写任何数据）
	c, err := s.registry.Get(connectorID)
	if err != nil {
		return nil, err
	}
	out := &IngestOutcome{ConnectorID: c.ID(), SeasonYear: seasonYear, RunID: uuid.NewString()}
	log := s.logger.WithFields(logrus.Fields{"connector": c.ID(), "year": seasonYear, "run_id": out.RunID})

	// 2. 数据源行在数据事务之外保证存在，raw_imports 的外键依赖它
	if _, err := s.store.Upserter().UpsertSources(ctx, []*model.Source{c.Source()}); err != nil {
		return nil, fmt.Errorf("写入数据源%s失败: %w", c.ID(), err)
	}

	// 3. fetch（整体超时 + panic 兜底）
	start := time.Now()
	res := s.fetch(ctx, c, seasonYear)
	metrics.RecordFetch(c.ID(), res.Origin, time.Since(start))
	fetchedAt := s.now()
	out.RawPath = res.RawPath()
	out.Origin = res.Origin
	out.ImportID, err = ident.ImportID(c.ID(), fetchedAt, seasonYear, out.RunID)
	if err != nil {
		return nil, err
	}
	rec := &model.RawImport{
		ImportID:   out.ImportID,
		SourceID:   model.Ptr(c.ID()),
		FetchedAt:  fetchedAt,
		SeasonYear: seasonYear,
		RawPath:    out.RawPath,
		RunID:      out.RunID,
	}

	if !res.OK() {
		log.WithError(res.Err).Warnf("fetch 未成功，状态 %s", res.Status)
		return s.finish(ctx, out, rec, res.Status, res.Err, res.Meta)
	}
	if err := ctx.Err(); err != nil {
		return s.finish(ctx, out, rec, model.ImportError, fmt.Errorf("抓取后被取消: %w", err), res.Meta)
	}

	// 4. parse 失败不开事务
	payload, err := s.parse(c, res.Paths, seasonYear)
	if err != nil {
		log.WithError(err).Error("解析失败")
		return s.finish(ctx, out, rec, model.ImportError, err, res.Meta)
	}
	if err := ctx.Err(); err != nil {
		return s.finish(ctx, out, rec, model.ImportError, fmt.Errorf("解析后被取消: %w", err), res.Meta)
	}

	// 5. upsert 与 success 日志同一事务
	success := *rec
	success.Status = model.ImportSuccess
	success.FetchOrigin = model.Ptr(res.Origin)
	success.Meta = encodeMeta(res.Meta, map[string]interface{}{"rows": payload.RowCount()})
	var report *model.UpsertReport
	err = s.store.WriteTx(ctx, func(tx *gorm.DB) error {
		r, err := c.Upsert(ctx, repository.NewUpsertRepository(tx), payload)
		if err != nil {
			return err
		}
		report = r
		return repository.NewImportRepository(tx).Append(ctx, &success)
	})
	if err != nil {
		log.WithError(err).Error("写入失败，整批回滚")
		return s.finish(ctx, out, rec, model.ImportError, err, res.Meta)
	}

	out.Status = model.ImportSuccess
	out.Report = report
	metrics.RecordIngest(c.ID(), model.ImportSuccess)
	metrics.RecordUpsert(c.ID(), report)
	for _, cf := range report.Conflicts {
		log.WithFields(logrus.Fields{"table": cf.Table, "row": cf.RowKey}).Warn(cf.Reason)
	}
	log.WithFields(logrus.Fields{"origin": res.Origin, "report": report.String()}).Info("抓取完成")
	return out, nil
}

// finish 记录 skipped/error 行。被取消的尝试仍要留下一行日志，因此脱离 ctx 的取消信号
func (s *IngestService) finish(ctx context.Context, out *IngestOutcome, rec *model.RawImport, status model.ImportStatus, cause error, meta map[string]interface{}) (*IngestOutcome, error) {
	if status == model.ImportSuccess {
		status = model.ImportError
	}
	rec.Status = status
	extra := map[string]interface{}{}
	if cause != nil {
		if status == model.ImportError {
			rec.Error = model.Ptr(cause.Error())
		} else {
			// skipped 的 error 列保持 NULL，原因放进 meta
			extra["skip_reason"] = cause.Error()
		}
	}
	rec.Meta = encodeMeta(meta, extra)

	writeCtx := context.WithoutCancel(ctx)
	if err := s.store.WriteTx(writeCtx, func(tx *gorm.DB) error {
		return repository.NewImportRepository(tx).Append(writeCtx, rec)
	}); err != nil {
		return nil, fmt.Errorf("写入raw_imports失败: %w", err)
	}
	out.Status = status
	out.Err = cause
	if cause != nil {
		out.Error = cause.Error()
	}
	metrics.RecordIngest(out.ConnectorID, status)
	return out, nil
}

func (s *IngestService) fetch(ctx context.Context, c interfaces.Connector, seasonYear int) (res model.SnapshotResult) {
	timeout := s.cfg.Ingest.FetchTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("connector", c.ID()).Errorf("fetch panic: %v", r)
			res = model.Failed("", fmt.Errorf("fetch panic: %v", r))
		}
	}()
	res = c.Fetch(ctx, seasonYear, s.cfg.Paths.RawDir)
	switch res.Status {
	case model.ImportSuccess, model.ImportSkipped:
	case model.ImportError:
		if res.Err == nil {
			res.Err = errors.New("fetch 失败但没有返回原因")
		}
	default:
		res = model.Failed(res.Dir, fmt.Errorf("fetch 返回未知状态%q", res.Status))
	}
	if res.Status == model.ImportError && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Err = fmt.Errorf("fetch 超时(%s): %w", timeout, res.Err)
	}
	return res
}

func (s *IngestService) parse(c interfaces.Connector, paths []string, seasonYear int) (payload *model.NormalizedPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("%w: parse panic: %v", model.ErrParse, r)
		}
	}()
	payload, err = c.Parse(paths, seasonYear)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = &model.NormalizedPayload{}
	}
	return payload, nil
}

// IngestAll 顺序抓取多个 connector；ids 为空表示全部。任何 id 未知时不执行任何抓取
func (s *IngestService) IngestAll(ctx context.Context, seasonYear int, ids []string) ([]*IngestOutcome, error) {
	if len(ids) == 0 {
		ids = s.registry.List()
	}
	for _, id := range ids {
		if _, err := s.registry.Get(id); err != nil {
			return nil, err
		}
	}
	outcomes := make([]*IngestOutcome, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o, err := s.Ingest(ctx, id, seasonYear)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func encodeMeta(meta map[string]interface{}, extra map[string]interface{}) datatypes.JSON {
	merged := make(map[string]interface{}, len(meta)+len(extra))
	for k, v := range meta {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
