package repository

import (
	"context"
	"fmt"

	"SportsNations/internal/model"

	"gorm.io/gorm"
)

// ImportRepository 原始抓取日志仓储：只追加，不提供更新/删除
type ImportRepository interface {
	Append(ctx context.Context, rec *model.RawImport) error
	List(ctx context.Context, filter ImportFilter) ([]*model.RawImport, error)
	CountByStatus(ctx context.Context, sourceID string) (map[model.ImportStatus]int64, error)
}

// ImportFilter 日志查询条件
type ImportFilter struct {
	SourceID   string
	SeasonYear int
	Status     model.ImportStatus
	Limit      int
}

type importRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) ImportRepository {
	return &importRepository{db: db}
}

// Append 追加一行；主键冲突直接报错而不是覆盖
func (r *importRepository) Append(ctx context.Context, rec *model.RawImport) error {
	if rec == nil || rec.ImportID == "" {
		return fmt.Errorf("%w: raw_import 缺少 import_id", model.ErrInvalidInput)
	}
	switch rec.Status {
	case model.ImportSuccess, model.ImportSkipped, model.ImportError:
	default:
		return fmt.Errorf("%w: raw_import 状态%q非法", model.ErrInvalidInput, rec.Status)
	}
	if err := r.db.WithContext(ctx).Omit("Source").Create(rec).Error; err != nil {
		return classifyError("raw_imports", err)
	}
	return nil
}

// List 按抓取时间倒序
func (r *importRepository) List(ctx context.Context, filter ImportFilter) ([]*model.RawImport, error) {
	q := r.db.WithContext(ctx).Model(&model.RawImport{})
	if filter.SourceID != "" {
		q = q.Where("source_id = ?", filter.SourceID)
	}
	if filter.SeasonYear != 0 {
		q = q.Where("season_year = ?", filter.SeasonYear)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []*model.RawImport
	if err := q.Order("fetched_at_utc DESC").Order("import_id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus 某数据源（为空表示全部）各状态的行数
func (r *importRepository) CountByStatus(ctx context.Context, sourceID string) (map[model.ImportStatus]int64, error) {
	type row struct {
		Status model.ImportStatus `gorm:"column:status"`
		N      int64              `gorm:"column:n"`
	}
	q := r.db.WithContext(ctx).Model(&model.RawImport{}).Select("status, COUNT(*) AS n").Group("status")
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}
	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.ImportStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
