package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/model"
	"SportsNations/internal/repository"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"

	ManifestFile = "manifest.yaml"
)

// exportBases 三个导出库及其包含的表
var exportBases = []struct {
	name   string
	tables []string
}{
	{"reference", []string{"countries", "sports", "disciplines", "sport_federations", "sources"}},
	{"competition", []string{"competitions", "events", "participants", "results"}},
	{"lineage", []string{"sources", "raw_imports"}},
}

// tableOrder 导出时的稳定排序
var tableOrder = map[string]string{
	"countries":         "country_id",
	"sports":            "sport_id",
	"disciplines":       "discipline_id",
	"sport_federations": "sport_id, federation_qid",
	"sources":           "source_id",
	"competitions":      "competition_id",
	"events":            "event_id",
	"participants":      "participant_id",
	"results":           "event_id, participant_id",
	"raw_imports":       "fetched_at_utc, import_id",
}

// RelationWriter 把一个关系（表）写成平面文件
type RelationWriter interface {
	WriteRelation(name string, columns []string, rows [][]interface{}) (string, error)
}

// NewRelationWriter 按格式创建写入器
func NewRelationWriter(format, dir string) (RelationWriter, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return &CSVWriter{Dir: dir}, nil
	case FormatJSON:
		return &JSONWriter{Dir: dir}, nil
	}
	return nil, fmt.Errorf("%w: 不支持的导出格式%q", model.ErrInvalidInput, format)
}

// CSVWriter <dir>/<name>.csv，首行为列名，NULL 写为空串
type CSVWriter struct {
	Dir string
}

func (w *CSVWriter) WriteRelation(name string, columns []string, rows [][]interface{}) (string, error) {
	path := filepath.Join(w.Dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		return "", err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			record[i] = csvValue(v)
		}
		if err := cw.Write(record); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return path, f.Close()
}

func csvValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// JSONWriter <dir>/<name>.json，对象数组
type JSONWriter struct {
	Dir string
}

func (w *JSONWriter) WriteRelation(name string, columns []string, rows [][]interface{}) (string, error) {
	objects := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			obj[col] = jsonValue(row[i])
		}
		objects = append(objects, obj)
	}
	data, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, name+".json")
	return path, os.WriteFile(path, data, 0o644)
}

func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return t
	}
}

// ExportOptions 导出参数
type ExportOptions struct {
	Dir    string // 为空使用 paths.export_dir
	Format string // csv/json
	Force  bool   // 校验未通过也导出
}

// BaseManifest 单个导出库
type BaseManifest struct {
	Path       string         `yaml:"path" json:"path"`
	Tables     []string       `yaml:"tables" json:"tables"`
	RowsSynced map[string]int `yaml:"rows_synced" json:"rows_synced"`
}

// ExportManifest manifest.yaml
type ExportManifest struct {
	GeneratedAt      time.Time               `yaml:"generated_at_utc" json:"generated_at_utc"`
	StoreDriver      string                  `yaml:"store_driver" json:"store_driver"`
	Format           string                  `yaml:"format" json:"format"`
	ValidationPassed bool                    `yaml:"validation_passed" json:"validation_passed"`
	Forced           bool                    `yaml:"forced,omitempty" json:"forced,omitempty"`
	Databases        map[string]BaseManifest `yaml:"databases" json:"databases"`
}

// ExportService 把存储导出为 reference/competition/lineage 三组平面文件
type ExportService struct {
	store     *repository.Store
	validator *Validator
	cfg       *config.Config
	logger    *logrus.Logger
}

func NewExportService(store *repository.Store, cfg *config.Config, logger *logrus.Logger) *ExportService {
	return &ExportService{
		store:     store,
		validator: NewValidator(store.DB(), logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Export 校验通过（或 Force）后并行导出三组关系，最后写 manifest.yaml
func (s *ExportService) Export(ctx context.Context, opts ExportOptions) (*ExportManifest, *ValidationReport, error) {
	if _, err := NewRelationWriter(opts.Format, ""); err != nil {
		return nil, nil, err
	}
	report := s.validator.Run(ctx)
	if !report.Passed && !opts.Force {
		return nil, report, report.Err()
	}
	if !report.Passed {
		s.logger.Warn("校验未通过，按 --force 继续导出")
	}

	dir := opts.Dir
	if dir == "" {
		dir = s.cfg.Paths.ExportDir
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatCSV
	}
	manifest := &ExportManifest{
		GeneratedAt:      time.Now().UTC(),
		StoreDriver:      s.store.Driver(),
		Format:           format,
		ValidationPassed: report.Passed,
		Forced:           opts.Force && !report.Passed,
		Databases:        make(map[string]BaseManifest, len(exportBases)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range exportBases {
		g.Go(func() error {
			baseDir := filepath.Join(dir, "databases", b.name)
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}
			w, err := NewRelationWriter(format, baseDir)
			if err != nil {
				return err
			}
			counts := make(map[string]int, len(b.tables))
			for _, table := range b.tables {
				n, err := exportTable(gctx, s.store.DB(), w, table)
				if err != nil {
					return fmt.Errorf("导出%s.%s失败: %w", b.name, table, err)
				}
				counts[table] = n
			}
			mu.Lock()
			manifest.Databases[b.name] = BaseManifest{Path: baseDir, Tables: b.tables, RowsSynced: counts}
			mu.Unlock()
			s.logger.WithFields(logrus.Fields{"base": b.name, "tables": len(b.tables)}).Info("导出完成")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, report, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return nil, report, fmt.Errorf("写入manifest失败: %w", err)
	}
	return manifest, report, nil
}

// exportTable 按稳定顺序读取整表交给写入器，返回行数
func exportTable(ctx context.Context, db *gorm.DB, w RelationWriter, table string) (int, error) {
	q := db.WithContext(ctx).Table(table)
	if order, ok := tableOrder[table]; ok {
		q = q.Order(order)
	}
	rows, err := q.Rows()
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if _, err := w.WriteRelation(table, columns, out); err != nil {
		return 0, err
	}
	return len(out), nil
}
