// Package fifaranking FIFA 男足世界排名历史：每年最后一次发布的前 10 名。
package fifaranking

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"SportsNations/internal/adapter/base"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"
	"SportsNations/internal/utils/publication"

	"github.com/sirupsen/logrus"
)

const (
	ID             = "fifa_ranking_history"
	defaultURL     = "https://raw.githubusercontent.com/Dato-Futbol/fifa-ranking/master/ranking_fifa_historical.csv"
	seedFile       = "fifa_ranking_full.csv"
	defaultTopN    = 10
	disciplineName = "FIFA Men Ranking"
	eventClass     = "ranking_release_top10"
)

// countryNames FIFA 使用、但与 ISO 英文名不一致的国家名
var countryNames = map[string]string{
	"IR Iran":             "IRN",
	"Korea Republic":      "KOR",
	"Korea DPR":           "PRK",
	"China PR":            "CHN",
	"Congo DR":            "COD",
	"Cape Verde Islands":  "CPV",
	"Curacao":             "CUW",
	"Czech Republic":      "CZE",
	"Kyrgyz Republic":     "KGZ",
	"Chinese Taipei":      "TWN",
	"Brunei Darussalam":   "BRN",
	"Republic of Ireland": "IRL",
	"United States":       "USA",
	"USA":                 "USA",
	"Vietnam":             "VNM",
}

type Adapter struct {
	base.Base
}

func NewFifaRankingAdapter(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector {
	return &Adapter{Base: base.NewBase(ID, cfg, logger)}
}

func (a *Adapter) Source() *model.Source {
	return &model.Source{
		SourceID:     ID,
		SourceName:   "FIFA Men's Ranking Historical CSV",
		SourceType:   "csv",
		LicenseNotes: model.Ptr("Open-source mirror of FIFA ranking history; source repository attribution required."),
		BaseURL:      model.Ptr(a.BaseURL(defaultURL)),
	}
}

// Fetch 整份历史 CSV 一次抓取，年份筛选放在 parse
func (a *Adapter) Fetch(ctx context.Context, _ int, outDir string) model.SnapshotResult {
	return a.FetchWithFallback(ctx, outDir, base.FetchPlan{
		Remote: []base.RemoteFile{{
			Name:    seedFile,
			Request: base.Request{URL: a.BaseURL(defaultURL)},
		}},
		SeedPath: a.SeedPath(seedFile),
	})
}

// team 一条排名记录
type team struct {
	Code   string
	Name   string
	Points float64
}

func (a *Adapter) Parse(rawPaths []string, seasonYear int) (*model.NormalizedPayload, error) {
	var pubs []publication.Publication[team]
	for _, path := range base.DataFiles(rawPaths) {
		if !strings.HasSuffix(strings.ToLower(path), ".csv") {
			continue
		}
		p, err := readPublications(path)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p...)
	}
	if len(pubs) == 0 {
		return nil, base.ParseErr("快照中没有 FIFA 排名数据")
	}

	selected, err := publication.Select(pubs, publication.Policy{TopN: a.TopN(defaultTopN), UntilYear: seasonYear})
	if err != nil {
		return nil, base.WrapParse(err, "选择年度发布")
	}
	return a.build(selected)
}

func (a *Adapter) build(selected []publication.Selection[team]) (*model.NormalizedPayload, error) {
	out := base.NewPayload(a.Source())
	sport, err := base.SportRow("Football")
	if err != nil {
		return nil, err
	}
	discipline, err := base.DisciplineRow(disciplineName, sport.SportID, ID, 1.0)
	if err != nil {
		return nil, err
	}
	out.Sport(sport)
	out.Discipline(discipline)

	for _, sel := range selected {
		date := model.Ptr(sel.EffectiveDate.Format("2006-01-02"))
		competitionID := fmt.Sprintf("fifa_ranking_%04d", sel.Year)
		eventID := competitionID + "_men"
		out.Competition(&model.Competition{
			CompetitionID: competitionID,
			SportID:       sport.SportID,
			Name:          fmt.Sprintf("FIFA Men's Ranking %d", sel.Year),
			SeasonYear:    model.Ptr(sel.Year),
			Level:         model.Ptr("national_team_ranking"),
			StartDate:     date,
			EndDate:       date,
			SourceID:      model.Ptr(ID),
		})
		out.Event(&model.Event{
			EventID:       eventID,
			CompetitionID: competitionID,
			DisciplineID:  model.Ptr(discipline.DisciplineID),
			Gender:        model.Ptr("men"),
			EventClass:    model.Ptr(eventClass),
			EventDate:     date,
			TopN:          model.Ptr(base.DeclaredTopN(a.TopN(defaultTopN), len(sel.Entries))),
		})
		for _, e := range sel.Entries {
			country := out.Country(e.Item.Code, e.Item.Name)
			out.Participant(base.NationalTeam(country))
			out.Result(&model.Result{
				EventID:       eventID,
				ParticipantID: country.CountryID,
				Rank:          model.Ptr(e.Rank),
				Medal:         base.MedalForRank(e.Rank),
				ScoreRaw:      model.Ptr(fmt.Sprintf("fifa_points=%g", e.Item.Points)),
				PointsAwarded: model.Ptr(e.Item.Points),
			})
		}
	}
	return out.Build(), nil
}

// csvLayout 两种已知 CSV 布局的列位置
type csvLayout struct {
	rank, name, code, points, date int // rank < 0 表示按积分推导名次
}

func detectLayout(header []string) (csvLayout, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	has := func(cols ...string) bool {
		for _, c := range cols {
			if _, ok := idx[c]; !ok {
				return false
			}
		}
		return true
	}
	switch {
	case has("rank", "country_full", "country_abrv", "total_points", "rank_date"):
		return csvLayout{rank: idx["rank"], name: idx["country_full"], code: idx["country_abrv"],
			points: idx["total_points"], date: idx["rank_date"]}, nil
	case has("team", "team_short", "total_points", "date"):
		return csvLayout{rank: -1, name: idx["team"], code: idx["team_short"],
			points: idx["total_points"], date: idx["date"]}, nil
	}
	return csvLayout{}, base.ParseErr("不支持的 FIFA CSV 列: %v", header)
}

// readPublications 按发布日期分组读取一份 CSV
func readPublications(path string) ([]publication.Publication[team], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开快照文件失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, base.WrapParse(err, "读取表头")
	}
	layout, err := detectLayout(header)
	if err != nil {
		return nil, err
	}

	byDate := make(map[time.Time][]publication.Entry[team])
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, base.WrapParse(err, fmt.Sprintf("第%d行", line))
		}
		entry, date, ok, err := readRow(rec, layout)
		if err != nil {
			return nil, fmt.Errorf("第%d行: %w", line, err)
		}
		if ok {
			byDate[date] = append(byDate[date], entry)
		}
	}

	pubs := make([]publication.Publication[team], 0, len(byDate))
	for date, entries := range byDate {
		if layout.rank < 0 {
			rankByPoints(entries)
		}
		pubs = append(pubs, publication.Publication[team]{
			EffectiveDate: date,
			Label:         date.Format("2006-01-02"),
			Entries:       entries,
		})
	}
	sort.Slice(pubs, func(i, j int) bool { return pubs[i].EffectiveDate.Before(pubs[j].EffectiveDate) })
	return pubs, nil
}

// readRow 缺少日期或国家的行直接跳过（ok=false）
func readRow(rec []string, l csvLayout) (publication.Entry[team], time.Time, bool, error) {
	var zero publication.Entry[team]
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	name, code, dateText := field(l.name), field(l.code), field(l.date)
	if name == "" || code == "" || dateText == "" {
		return zero, time.Time{}, false, nil
	}
	date, err := parseDate(dateText)
	if err != nil {
		return zero, time.Time{}, false, err
	}
	countryID, ok := base.ResolveCountry(code, name, countryNames)
	if !ok {
		return zero, time.Time{}, false, base.ParseErr("无法识别国家 %q(%s)", name, code)
	}
	var points float64
	if p := field(l.points); p != "" {
		if points, err = base.ParseFloat("total_points", p); err != nil {
			return zero, time.Time{}, false, err
		}
	}
	rank := 0
	if l.rank >= 0 {
		if rank, err = base.Atoi("rank", field(l.rank)); err != nil {
			return zero, time.Time{}, false, err
		}
	}
	return publication.Entry[team]{Rank: rank, Item: team{Code: countryID, Name: name, Points: points}}, date, true, nil
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006/01/02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, base.ParseErr("无法解析日期 %q", s)
}

// rankByPoints 没有名次列时按积分降序排位，积分相同按名称
func rankByPoints(entries []publication.Entry[team]) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Item.Points != entries[j].Item.Points {
			return entries[i].Item.Points > entries[j].Item.Points
		}
		return entries[i].Item.Name < entries[j].Item.Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
