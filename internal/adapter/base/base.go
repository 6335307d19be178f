// Package base connector 公共能力：HTTP 重试、快照目录、本地种子回退与默认 upsert。
package base

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
)

// Base 各 connector 内嵌的公共部分
type Base struct {
	ConnectorID string
	Cfg         config.ConnectorConfig
	Logger      *logrus.Logger
	Client      *Client
	Now         func() time.Time
}

func NewBase(id string, cfg *config.ConnectorConfig, logger *logrus.Logger) Base {
	c := config.ConnectorConfig{}
	if cfg != nil {
		c = *cfg
	}
	return Base{
		ConnectorID: id,
		Cfg:         c,
		Logger:      logger,
		Client:      NewClient(id, &c, logger),
		Now:         time.Now,
	}
}

// ID connector 标识
func (b *Base) ID() string { return b.ConnectorID }

// BaseURL 配置优先，否则用默认地址
func (b *Base) BaseURL(fallback string) string {
	if b.Cfg.BaseURL != "" {
		return b.Cfg.BaseURL
	}
	return fallback
}

// TopN 配置优先，否则用 connector 声明的 N
func (b *Base) TopN(fallback int) int {
	if b.Cfg.TopN > 0 {
		return b.Cfg.TopN
	}
	return fallback
}

// SeedPath 本地种子路径：seed_path 优先，其次 <seed_dir>/<defaultName>
func (b *Base) SeedPath(defaultName string) string {
	if b.Cfg.SeedPath != "" {
		return b.Cfg.SeedPath
	}
	if defaultName == "" {
		return ""
	}
	dir := b.Cfg.SeedDir
	if dir == "" {
		dir = filepath.Join("data", "seeds")
	}
	return filepath.Join(dir, defaultName)
}

// Upsert 默认实现：整个 payload 交给 upsert 引擎
func (b *Base) Upsert(ctx context.Context, w interfaces.PayloadWriter, payload *model.NormalizedPayload) (*model.UpsertReport, error) {
	return w.Apply(ctx, payload)
}

// RemoteFile 需要抓取并原样保存的远程文件
type RemoteFile struct {
	Name    string // 快照内文件名
	Request Request
}

// FetchPlan 远程优先、不可达时回退到本地种子
type FetchPlan struct {
	Remote   []RemoteFile
	SeedPath string // 为空表示没有本地回退
}

// FetchWithFallback 抓取全部远程文件；任一失败则删除已写文件并尝试本地种子
func (b *Base) FetchWithFallback(ctx context.Context, outDir string, plan FetchPlan) model.SnapshotResult {
	log := b.Logger.WithField("connector", b.ConnectorID)
	dir, err := NewSnapshotDir(outDir, b.ConnectorID, b.Now())
	if err != nil {
		return model.Failed("", err)
	}

	var remoteErr error
	if len(plan.Remote) > 0 && !b.Cfg.PreferSeed {
		paths, urls, err := b.fetchRemote(ctx, dir, plan.Remote)
		if err == nil {
			meta := map[string]interface{}{"origin": string(model.OriginRemote), "urls": urls}
			if err := WriteMeta(dir, meta); err != nil {
				return model.Failed(dir, err)
			}
			log.WithField("files", len(paths)).Info("远程数据抓取成功")
			return model.Fetched(model.OriginRemote, dir, paths, meta)
		}
		remoteErr = err
		if ctx.Err() != nil {
			return model.Failed(dir, fmt.Errorf("抓取被取消: %w", err))
		}
		log.WithError(err).Warn("远程数据源不可达，尝试本地种子")
	}

	if FileExists(plan.SeedPath) {
		path, err := CopySeed(plan.SeedPath, dir)
		if err != nil {
			return model.Failed(dir, err)
		}
		meta := map[string]interface{}{"origin": string(model.OriginLocalSeed), "seed_path": plan.SeedPath}
		if remoteErr != nil {
			meta["remote_error"] = remoteErr.Error()
		}
		if b.Cfg.PreferSeed {
			meta["prefer_seed"] = true
		}
		if err := WriteMeta(dir, meta); err != nil {
			return model.Failed(dir, err)
		}
		log.WithField("seed", plan.SeedPath).Info("使用本地种子快照")
		return model.Fetched(model.OriginLocalSeed, dir, []string{path}, meta)
	}

	if remoteErr != nil {
		return model.Failed(dir, remoteErr)
	}
	return model.Failed(dir, fmt.Errorf("%w: 没有可用的远程地址，且本地种子%q不存在", model.ErrSourceUnreachable, plan.SeedPath))
}

func (b *Base) fetchRemote(ctx context.Context, dir string, files []RemoteFile) ([]string, []string, error) {
	paths := make([]string, 0, len(files))
	urls := make([]string, 0, len(files))
	for _, f := range files {
		data, err := b.Client.Get(ctx, f.Request)
		if err == nil {
			var path string
			path, err = WriteRaw(dir, f.Name, data)
			if err == nil {
				paths = append(paths, path)
				urls = append(urls, f.Request.URL)
				continue
			}
		}
		for _, p := range paths {
			_ = os.Remove(p)
		}
		return nil, nil, err
	}
	return paths, urls, nil
}

// ParseErr 包装为 ErrParse
func ParseErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrParse, fmt.Sprintf(format, args...))
}

// WrapParse 已有错误包装为 ErrParse（已是 ErrParse 的原样返回）
func WrapParse(err error, what string) error {
	if err == nil || errors.Is(err, model.ErrParse) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", model.ErrParse, what, err)
}

// DataFiles 过滤掉 fetch_meta.json
func DataFiles(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.Base(p) != MetaFile {
			out = append(out, p)
		}
	}
	return out
}
