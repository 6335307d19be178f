package base

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// MetaFile 每个快照目录里记录抓取来源的文件，不作为 parse 输入
const MetaFile = "fetch_meta.json"

// snapshotLayout 目录名：UTC 时间戳，精确到微秒保证同一秒内多次抓取不冲突
const snapshotLayout = "20060102T150405.000000Z"

// NewSnapshotDir 创建 <outDir>/<connectorID>/<timestamp>/
func NewSnapshotDir(outDir, connectorID string, now time.Time) (string, error) {
	dir := filepath.Join(outDir, connectorID, now.UTC().Format(snapshotLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建快照目录失败: %w", err)
	}
	return dir, nil
}

// WriteRaw 原样写入快照文件
func WriteRaw(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入快照%s失败: %w", name, err)
	}
	return path, nil
}

// CopySeed 把本地种子原样复制进快照目录
func CopySeed(seedPath, dir string) (string, error) {
	src, err := os.Open(seedPath)
	if err != nil {
		return "", fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer src.Close()
	path := filepath.Join(dir, filepath.Base(seedPath))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建快照文件失败: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("复制种子文件失败: %w", err)
	}
	return path, dst.Close()
}

// WriteMeta 写 fetch_meta.json
func WriteMeta(dir string, meta map[string]interface{}) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	_, err = WriteRaw(dir, MetaFile, data)
	return err
}

// ReadMeta 读取快照目录中的 fetch_meta.json
func ReadMeta(dir string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, err
	}
	meta := map[string]interface{}{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// FileExists 文件是否存在且不是目录
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
