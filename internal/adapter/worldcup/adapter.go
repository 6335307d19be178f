// Package worldcup FIFA 世界杯历届最终前四名。
package worldcup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
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
	ID             = "world_cup_history"
	seedFile       = "world_cup_top4_seed.csv"
	defaultTopN    = 4
	disciplineName = "FIFA World Cup Final Ranking"
	eventClass     = "final_ranking_top4"
	projectURL     = "https://github.com/openfootball/world-cup"
)

// countryOverrides 历史国家与常用别名，优先于英文名匹配
var countryOverrides = map[string]string{
	"West Germany":     "DEU",
	"Germany":          "DEU",
	"East Germany":     "DDR",
	"Czechoslovakia":   "TCH",
	"Soviet Union":     "URS",
	"Yugoslavia":       "YUG",
	"Netherlands":      "NLD",
	"United States":    "USA",
	"South Korea":      "KOR",
	"Korea Republic":   "KOR",
	"North Korea":      "PRK",
	"Iran":             "IRN",
	"England":          "ENG",
	"Wales":            "WAL",
	"Scotland":         "SCO",
	"Northern Ireland": "NIR",
	"Czech Republic":   "CZE",
	"Turkey":           "TUR",
	"Russia":           "RUS",
}

type Adapter struct {
	base.Base
}

func NewWorldCupAdapter(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector {
	return &Adapter{Base: base.NewBase(ID, cfg, logger)}
}

func (a *Adapter) Source() *model.Source {
	return &model.Source{
		SourceID:     ID,
		SourceName:   "FIFA World Cup Historical Results",
		SourceType:   "csv",
		LicenseNotes: model.Ptr("OpenFootball open data. Verify downstream redistribution requirements."),
		BaseURL:      model.Ptr(a.BaseURL(projectURL)),
	}
}

// Fetch 配置了 base_url 时抓取同格式的远程 CSV，否则直接使用随仓库分发的种子
func (a *Adapter) Fetch(ctx context.Context, _ int, outDir string) model.SnapshotResult {
	plan := base.FetchPlan{SeedPath: a.SeedPath(seedFile)}
	if a.Cfg.BaseURL != "" {
		plan.Remote = []base.RemoteFile{{Name: seedFile, Request: base.Request{URL: a.Cfg.BaseURL}}}
	}
	return a.FetchWithFallback(ctx, outDir, plan)
}

type finisher struct {
	Code string
	Name string
}

func (a *Adapter) Parse(rawPaths []string, seasonYear int) (*model.NormalizedPayload, error) {
	var pubs []publication.Publication[finisher]
	for _, path := range base.DataFiles(rawPaths) {
		if !strings.HasSuffix(strings.ToLower(path), ".csv") {
			continue
		}
		p, err := readEditions(path)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p...)
	}
	if len(pubs) == 0 {
		return nil, base.ParseErr("快照中没有世界杯数据")
	}

	topN := a.TopN(defaultTopN)
	selected, err := publication.Select(pubs, publication.Policy{TopN: topN, UntilYear: seasonYear})
	if err != nil {
		return nil, base.WrapParse(err, "选择届次")
	}

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
		competitionID := fmt.Sprintf("fifa_world_cup_%04d", sel.Year)
		eventID := competitionID + "_final_ranking"
		out.Competition(&model.Competition{
			CompetitionID: competitionID,
			SportID:       sport.SportID,
			Name:          fmt.Sprintf("FIFA World Cup %d", sel.Year),
			SeasonYear:    model.Ptr(sel.Year),
			Level:         model.Ptr("national_team_tournament"),
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
			TopN:          model.Ptr(base.DeclaredTopN(topN, len(sel.Entries))),
		})
		for _, e := range sel.Entries {
			country := out.Country(e.Item.Code, e.Item.Name)
			out.Participant(base.NationalTeam(country))
			out.Result(&model.Result{
				EventID:       eventID,
				ParticipantID: country.CountryID,
				Rank:          model.Ptr(e.Rank),
				Medal:         base.MedalForRank(e.Rank),
				ScoreRaw:      model.Ptr(fmt.Sprintf("world_cup_final_rank=%d", e.Rank)),
			})
		}
	}
	return out.Build(), nil
}

// readEditions 每届一个发布，EditionYear 取 year 列（决赛可能跨年）
func readEditions(path string) ([]publication.Publication[finisher], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开快照文件失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, base.WrapParse(err, "读取表头")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range []string{"year", "rank", "country_name", "event_date"} {
		if _, ok := col[c]; !ok {
			return nil, base.ParseErr("世界杯 CSV 缺少列 %s", c)
		}
	}

	byYear := make(map[int]*publication.Publication[finisher])
	var order []int
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
		year, err := base.Atoi("year", rec[col["year"]])
		if err != nil {
			return nil, fmt.Errorf("第%d行: %w", line, err)
		}
		rank, err := base.Atoi("rank", rec[col["rank"]])
		if err != nil {
			return nil, fmt.Errorf("第%d行: %w", line, err)
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[col["event_date"]]))
		if err != nil {
			return nil, base.ParseErr("第%d行: 无法解析日期 %q", line, rec[col["event_date"]])
		}
		name := strings.TrimSpace(rec[col["country_name"]])
		code, ok := base.ResolveCountry("", name, countryOverrides)
		if !ok {
			return nil, base.ParseErr("第%d行: 无法识别国家 %q", line, name)
		}

		pub, ok := byYear[year]
		if !ok {
			pub = &publication.Publication[finisher]{EditionYear: year, EffectiveDate: date, Label: fmt.Sprintf("world cup %d", year)}
			byYear[year] = pub
			order = append(order, year)
		} else if date.After(pub.EffectiveDate) {
			pub.EffectiveDate = date
		}
		pub.Entries = append(pub.Entries, publication.Entry[finisher]{Rank: rank, Item: finisher{Code: code, Name: name}})
	}

	out := make([]publication.Publication[finisher], 0, len(order))
	for _, y := range order {
		out = append(out, *byYear[y])
	}
	return out, nil
}
