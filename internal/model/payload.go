package model

import (
	"fmt"
	"sort"
	"strings"
)

// ImportStatus 抓取结果状态
type ImportStatus string

const (
	ImportSuccess ImportStatus = "success"
	ImportSkipped ImportStatus = "skipped"
	ImportError   ImportStatus = "error"
)

// FetchOrigin 成功抓取时数据的实际来源
type FetchOrigin string

const (
	OriginRemote    FetchOrigin = "remote"
	OriginLocalSeed FetchOrigin = "local_seed"
)

// SnapshotResult fetch 阶段的返回值，失败也以值的形式返回而不是 panic
type SnapshotResult struct {
	Status ImportStatus
	Origin FetchOrigin // 仅 Status == success 时有意义
	Dir    string      // 本次快照目录
	Paths  []string    // 快照内的原始文件
	Err    error       // skipped/error 的原因
	Meta   map[string]interface{}
}

// Fetched 成功抓取（远程或本地种子）
func Fetched(origin FetchOrigin, dir string, paths []string, meta map[string]interface{}) SnapshotResult {
	return SnapshotResult{Status: ImportSuccess, Origin: origin, Dir: dir, Paths: paths, Meta: meta}
}

// Skipped 跳过（例如缺少凭证）
func Skipped(err error) SnapshotResult {
	return SnapshotResult{Status: ImportSkipped, Err: err}
}

// Failed 抓取失败
func Failed(dir string, err error) SnapshotResult {
	return SnapshotResult{Status: ImportError, Dir: dir, Err: err}
}

// OK 是否成功
func (s SnapshotResult) OK() bool { return s.Status == ImportSuccess }

// RawPath 记录到 raw_imports.raw_path 的路径
func (s SnapshotResult) RawPath() string {
	if s.Dir != "" {
		return s.Dir
	}
	if len(s.Paths) > 0 {
		return s.Paths[0]
	}
	return ""
}

// NormalizedPayload parse 阶段的输出，按表分组的待写入行
type NormalizedPayload struct {
	Countries    []*Country
	Sports       []*Sport
	Disciplines  []*Discipline
	Federations  []*SportFederation
	Sources      []*Source
	Competitions []*Competition
	Events       []*Event
	Participants []*Participant
	Results      []*Result
}

// Empty 是否没有任何行
func (p *NormalizedPayload) Empty() bool {
	return p == nil || p.RowCount() == 0
}

// RowCount 行数合计
func (p *NormalizedPayload) RowCount() int {
	if p == nil {
		return 0
	}
	return len(p.Countries) + len(p.Sports) + len(p.Disciplines) + len(p.Federations) +
		len(p.Sources) + len(p.Competitions) + len(p.Events) + len(p.Participants) + len(p.Results)
}

// TableCount 单表的写入统计
type TableCount struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted,omitempty"`
}

// RowConflict 行级冲突（同一批次中重复主键且内容不同）
type RowConflict struct {
	Table  string `json:"table"`
	RowKey string `json:"row_key"`
	Reason string `json:"reason"`
}

// UpsertReport upsert 阶段的统计结果
type UpsertReport struct {
	Tables    map[string]TableCount `json:"tables"`
	Conflicts []RowConflict         `json:"conflicts,omitempty"`
}

// NewUpsertReport 创建空报告
func NewUpsertReport() *UpsertReport {
	return &UpsertReport{Tables: make(map[string]TableCount)}
}

// Add 累加某表的计数
func (r *UpsertReport) Add(table string, inserted, updated int) {
	c := r.Tables[table]
	c.Inserted += inserted
	c.Updated += updated
	r.Tables[table] = c
}

// AddDeleted 累加某表因重新抓取而移除的行数
func (r *UpsertReport) AddDeleted(table string, deleted int) {
	c := r.Tables[table]
	c.Deleted += deleted
	r.Tables[table] = c
}

// Merge 合并另一份报告
func (r *UpsertReport) Merge(other *UpsertReport) {
	if other == nil {
		return
	}
	for t, c := range other.Tables {
		r.Add(t, c.Inserted, c.Updated)
		if c.Deleted > 0 {
			r.AddDeleted(t, c.Deleted)
		}
	}
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
}

// Total 所有表插入与更新合计
func (r *UpsertReport) Total() (inserted, updated int) {
	for _, c := range r.Tables {
		inserted += c.Inserted
		updated += c.Updated
	}
	return inserted, updated
}

func (r *UpsertReport) String() string {
	names := make([]string, 0, len(r.Tables))
	for t := range r.Tables {
		names = append(names, t)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, t := range names {
		c := r.Tables[t]
		part := fmt.Sprintf("%s=+%d/~%d", t, c.Inserted, c.Updated)
		if c.Deleted > 0 {
			part += fmt.Sprintf("/-%d", c.Deleted)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
