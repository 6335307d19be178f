package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"SportsNations/internal/config"
	"SportsNations/internal/model"
	"SportsNations/internal/repository"
	"SportsNations/internal/utils/countrycode"
	"SportsNations/internal/utils/ident"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	SportsSeedFile   = "sports_seed.txt"
	SportMappingFile = "sport_mapping.yaml"
)

// 映射来源（写入 disciplines.mapping_source）
const (
	MappingOverride = "yaml_override"
	MappingExact    = "exact_sport"
	MappingRegex    = "heuristic_regex"
	MappingToken    = "heuristic_token"
	MappingFallback = "fallback_assume_sport"
)

// knownSports 直接识别为运动的条目
var knownSports = map[string]bool{
	"athletics": true, "swimming": true, "wrestling": true, "football": true,
	"basketball": true, "cycling": true, "judo": true, "boxing": true,
	"tennis": true, "rowing": true, "volleyball": true, "handball": true,
	"rugby": true, "gymnastics": true, "biathlon": true, "skiing": true,
	"fencing": true, "weightlifting": true, "taekwondo": true,
}

type heuristicRule struct {
	pattern    *regexp.Regexp
	sport      string
	confidence float64
}

var heuristicRules = []heuristicRule{
	{regexp.MustCompile(`(?i)\b(\d{2,4}m|marathon|hurdles|relay|steeplechase)\b`), "Athletics", 0.90},
	{regexp.MustCompile(`(?i)\b(freestyle|butterfly|breaststroke|backstroke|medley)\b`), "Swimming", 0.90},
	{regexp.MustCompile(`(?i)\b(greco-roman|freestyle wrestling|wrestling)\b`), "Wrestling", 0.90},
	{regexp.MustCompile(`(?i)\b(road race|time trial|bmx|track sprint)\b`), "Cycling", 0.85},
	{regexp.MustCompile(`(?i)\b(single sculls|double sculls|coxless)\b`), "Rowing", 0.85},
	{regexp.MustCompile(`(?i)\b(sabre|foil|epee)\b`), "Fencing", 0.85},
}

// SportMapping sport_mapping.yaml
type SportMapping struct {
	ExplicitSports []string          `yaml:"explicit_sports"`
	Overrides      map[string]string `yaml:"overrides"` // 条目（小写）→ 运动名
}

// MappingDecision 单个种子条目的归类结果
type MappingDecision struct {
	Entry      string  `json:"entry"`
	Kind       string  `json:"kind"` // sport/discipline
	Sport      string  `json:"sport"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"mapping_source"`
}

// BootstrapReport 维度初始化结果
type BootstrapReport struct {
	Countries   int                 `json:"countries"`
	Sports      int                 `json:"sports"`
	Disciplines int                 `json:"disciplines"`
	Decisions   []MappingDecision   `json:"decisions"`
	Report      *model.UpsertReport `json:"report"`
}

// LoadSeedEntries 每行一个条目，忽略空行与 # 注释
func LoadSeedEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return entries, nil
}

// LoadSportMapping 读取映射覆盖；文件不存在返回空映射
func LoadSportMapping(path string) (*SportMapping, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &SportMapping{Overrides: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取映射文件失败: %w", err)
	}
	var m SportMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: 解析 %s: %v", model.ErrInvalidInput, filepath.Base(path), err)
	}
	normalized := make(map[string]string, len(m.Overrides))
	for k, v := range m.Overrides {
		k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
		if k != "" && v != "" {
			normalized[k] = v
		}
	}
	m.Overrides = normalized
	explicit := m.ExplicitSports[:0]
	for _, s := range m.ExplicitSports {
		if s = strings.TrimSpace(s); s != "" {
			explicit = append(explicit, s)
		}
	}
	m.ExplicitSports = explicit
	return &m, nil
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// InferMapping 顺序：YAML 覆盖 → 已知运动 → 正则启发式 → 词元匹配 → 视为运动
func InferMapping(entry string, m *SportMapping) MappingDecision {
	entry = strings.TrimSpace(entry)
	normalized := strings.ToLower(entry)
	d := MappingDecision{Entry: entry}

	if sport, ok := m.Overrides[normalized]; ok {
		d.Kind, d.Sport, d.Confidence, d.Source = "discipline", sport, 0.99, MappingOverride
		return d
	}
	explicit := knownSports[normalized]
	for _, s := range m.ExplicitSports {
		if strings.EqualFold(s, normalized) {
			explicit = true
		}
	}
	if explicit {
		d.Kind, d.Sport, d.Confidence, d.Source = "sport", titleWords(normalized), 1.0, MappingExact
		return d
	}
	for _, rule := range heuristicRules {
		if rule.pattern.MatchString(entry) {
			d.Kind, d.Sport, d.Confidence, d.Source = "discipline", rule.sport, rule.confidence, MappingRegex
			return d
		}
	}
	for _, token := range strings.Fields(normalized) {
		if knownSports[token] {
			d.Kind, d.Sport, d.Confidence, d.Source = "discipline", titleWords(token), 0.70, MappingToken
			return d
		}
	}
	d.Kind, d.Sport, d.Confidence, d.Source = "sport", entry, 0.55, MappingFallback
	return d
}

// BootstrapService 初始化 Country/Sport/Discipline 维度
type BootstrapService struct {
	store  *repository.Store
	cfg    *config.Config
	logger *logrus.Logger
}

func NewBootstrapService(store *repository.Store, cfg *config.Config, logger *logrus.Logger) *BootstrapService {
	return &BootstrapService{store: store, cfg: cfg, logger: logger}
}

// BuildDimensions 纯构建，不写库；同一 slug 对应不同名称时返回 ErrSlugCollision
func BuildDimensions(entries []string, m *SportMapping) (*model.NormalizedPayload, []MappingDecision, error) {
	payload := &model.NormalizedPayload{}
	for _, info := range countrycode.All() {
		payload.Countries = append(payload.Countries, countrycode.Row(info.Code, info.NameEN))
	}

	sportSlugs := ident.NewSlugSet()
	disciplineSlugs := ident.NewSlugSet()
	sports := map[string]*model.Sport{}
	disciplines := map[string]*model.Discipline{}
	decisions := make([]MappingDecision, 0, len(entries))

	for _, entry := range entries {
		d := InferMapping(entry, m)
		decisions = append(decisions, d)

		sportID, err := sportSlugs.Add(d.Sport)
		if err != nil {
			return nil, nil, fmt.Errorf("种子条目%q: %w", entry, err)
		}
		if _, ok := sports[sportID]; !ok {
			sports[sportID] = &model.Sport{SportID: sportID, SportName: d.Sport, SportSlug: sportID}
		}
		if d.Kind != "discipline" {
			continue
		}
		disciplineID, err := disciplineSlugs.Add(d.Entry)
		if err != nil {
			return nil, nil, fmt.Errorf("种子条目%q: %w", entry, err)
		}
		if _, ok := disciplines[disciplineID]; ok {
			continue
		}
		disciplines[disciplineID] = &model.Discipline{
			DisciplineID:   disciplineID,
			DisciplineName: d.Entry,
			DisciplineSlug: disciplineID,
			SportID:        sportID,
			Confidence:     model.Ptr(d.Confidence),
			MappingSource:  model.Ptr(d.Source),
		}
	}

	for _, s := range sports {
		payload.Sports = append(payload.Sports, s)
	}
	sort.Slice(payload.Sports, func(i, j int) bool { return payload.Sports[i].SportID < payload.Sports[j].SportID })
	for _, d := range disciplines {
		payload.Disciplines = append(payload.Disciplines, d)
	}
	sort.Slice(payload.Disciplines, func(i, j int) bool {
		a, b := payload.Disciplines[i], payload.Disciplines[j]
		if a.SportID != b.SportID {
			return a.SportID < b.SportID
		}
		return a.DisciplineID < b.DisciplineID
	})
	return payload, decisions, nil
}

// Bootstrap 读取种子与映射并 upsert 维度表（可重复执行）
func (s *BootstrapService) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	seedDir := s.cfg.Paths.SeedDir
	entries, err := LoadSeedEntries(filepath.Join(seedDir, SportsSeedFile))
	if err != nil {
		return nil, err
	}
	mapping, err := LoadSportMapping(filepath.Join(seedDir, SportMappingFile))
	if err != nil {
		return nil, err
	}
	payload, decisions, err := BuildDimensions(entries, mapping)
	if err != nil {
		return nil, err
	}
	report, err := s.store.Upserter().Apply(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("写入维度表失败: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"countries":   len(payload.Countries),
		"sports":      len(payload.Sports),
		"disciplines": len(payload.Disciplines),
	}).Infof("维度初始化完成 %s", report.String())
	return &BootstrapReport{
		Countries:   len(payload.Countries),
		Sports:      len(payload.Sports),
		Disciplines: len(payload.Disciplines),
		Decisions:   decisions,
		Report:      report,
	}, nil
}
