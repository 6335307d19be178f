package interfaces

import (
	"context"

	"SportsNations/internal/model"
)

// Connector 所有数据源必须实现的核心接口：fetch → parse → upsert
type Connector interface {
	ID() string             // connector 标识（同时作为 source_id）
	Source() *model.Source // 数据源元信息
	// Fetch 抓取原始数据写入 outDir 下的快照目录；失败以 SnapshotResult 返回，不 panic
	Fetch(ctx context.Context, seasonYear int, outDir string) model.SnapshotResult
	// Parse 纯转换：只读取 rawPaths，不做其他 I/O
	Parse(rawPaths []string, seasonYear int) (*model.NormalizedPayload, error)
	// Upsert 通过 PayloadWriter 写入存储
	Upsert(ctx context.Context, w PayloadWriter, payload *model.NormalizedPayload) (*model.UpsertReport, error)
}

// PayloadWriter upsert 引擎对 connector 暴露的写入能力
type PayloadWriter interface {
	Apply(ctx context.Context, payload *model.NormalizedPayload) (*model.UpsertReport, error)
}

// ImportLog 原始抓取日志（只追加）
type ImportLog interface {
	Append(ctx context.Context, rec *model.RawImport) error
}
