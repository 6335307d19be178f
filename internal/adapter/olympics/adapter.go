// Package olympics 奥运会历届奖牌榜：每个小项一份领奖台（允许并列超出）。
package olympics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"SportsNations/internal/adapter/base"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"
	"SportsNations/internal/utils/countrycode"
	"SportsNations/internal/utils/ident"
	"SportsNations/internal/utils/publication"

	"github.com/sirupsen/logrus"
)

const (
	ID          = "olympics_medals"
	defaultURL  = "https://raw.githubusercontent.com/KeithGalli/Olympics-Dataset/refs/heads/master/clean-data/results.csv"
	seedFile    = "keithgalli_results.csv"
	defaultTopN = 3
	gamesSport  = "Olympic Games"
	eventClass  = "olympic_event"
)

var medalRank = map[string]int{"gold": 1, "silver": 2, "bronze": 3}

var requiredColumns = []string{"year", "type", "discipline", "event", "as", "athlete_id", "noc", "place", "tied", "medal"}

// sportByPrefix 小项名前缀到运动大类
var sportByPrefix = []struct{ prefix, sport string }{
	{"cycling ", "Cycling"},
	{"wrestling ", "Wrestling"},
	{"equestrian ", "Equestrian"},
	{"canoe ", "Canoe"},
}

type Adapter struct {
	base.Base
}

func NewOlympicsAdapter(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector {
	return &Adapter{Base: base.NewBase(ID, cfg, logger)}
}

func (a *Adapter) Source() *model.Source {
	return &model.Source{
		SourceID:     ID,
		SourceName:   "Olympics Historical Results (KeithGalli)",
		SourceType:   "csv",
		LicenseNotes: model.Ptr("KeithGalli Olympics Dataset (repository indicates CC BY 4.0); check redistribution requirements."),
		BaseURL:      model.Ptr(a.BaseURL(defaultURL)),
	}
}

func (a *Adapter) Fetch(ctx context.Context, _ int, outDir string) model.SnapshotResult {
	return a.FetchWithFallback(ctx, outDir, base.FetchPlan{
		Remote:   []base.RemoteFile{{Name: seedFile, Request: base.Request{URL: a.BaseURL(defaultURL)}}},
		SeedPath: a.SeedPath(seedFile),
	})
}

// medalRow 一行获奖记录
type medalRow struct {
	Year       int
	Games      string // summer/winter
	Discipline string
	Event      string
	Athlete    string
	AthleteID  string
	Country    string
	Place      string
	Tied       string
	Medal      string
}

// podiumUnit 领奖台上的一个名次单位：个人，或同一国家同一奖牌的团体
type podiumUnit struct {
	participant *model.Participant
	row         medalRow
}

type eventKey struct {
	games      string
	year       int
	discipline string
	event      string
}

func (a *Adapter) Parse(rawPaths []string, seasonYear int) (*model.NormalizedPayload, error) {
	var rows []medalRow
	for _, path := range base.DataFiles(rawPaths) {
		if !strings.HasSuffix(strings.ToLower(path), ".csv") {
			continue
		}
		r, err := readMedals(path, seasonYear)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	if len(rows) == 0 {
		return nil, base.ParseErr("快照中没有 %d 年及以后的奥运奖牌数据", seasonYear)
	}

	out := base.NewPayload(a.Source())
	games, err := base.SportRow(gamesSport)
	if err != nil {
		return nil, err
	}
	out.Sport(games)

	byEvent := make(map[eventKey][]medalRow)
	var keys []eventKey
	for _, r := range rows {
		k := eventKey{r.Games, r.Year, r.Discipline, r.Event}
		if _, ok := byEvent[k]; !ok {
			keys = append(keys, k)
		}
		byEvent[k] = append(byEvent[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		if keys[i].games != keys[j].games {
			return keys[i].games < keys[j].games
		}
		if keys[i].discipline != keys[j].discipline {
			return keys[i].discipline < keys[j].discipline
		}
		return keys[i].event < keys[j].event
	})

	topN := a.TopN(defaultTopN)
	for _, k := range keys {
		if err := a.addEvent(out, games.SportID, k, byEvent[k], topN); err != nil {
			return nil, err
		}
	}
	return out.Build(), nil
}

func (a *Adapter) addEvent(out *base.Payload, gamesID string, k eventKey, rows []medalRow, topN int) error {
	sportName := inferSport(k.discipline)
	sport, err := base.SportRow(sportName)
	if err != nil {
		return err
	}
	discipline, err := base.DisciplineRow(k.discipline, sport.SportID, ID, 0.95)
	if err != nil {
		return err
	}
	disciplineSlug, err := ident.Slug(k.discipline)
	if err != nil {
		return err
	}
	eventSlug, err := ident.Slug(k.event)
	if err != nil {
		return err
	}

	entries, err := podium(out, rows)
	if err != nil {
		return fmt.Errorf("%d %s %s: %w", k.year, k.discipline, k.event, err)
	}
	selected, err := publication.Select([]publication.Publication[podiumUnit]{{
		EditionYear: k.year,
		Label:       k.event,
		Entries:     entries,
	}}, publication.Policy{TopN: topN, AllowTies: true})
	if err != nil {
		return base.WrapParse(err, k.event)
	}
	if len(selected) == 0 {
		return nil
	}
	sel := selected[0]
	if sel.Overrun {
		a.Logger.WithFields(logrus.Fields{"event": k.event, "year": k.year, "kept": len(sel.Entries)}).Debug("并列名次超出领奖台人数")
	}

	competitionID := fmt.Sprintf("olympics_%s_%d", k.games, k.year)
	eventID := fmt.Sprintf("%s_%s_%s", competitionID, disciplineSlug, eventSlug)
	out.Sport(sport)
	out.Discipline(discipline)
	out.Competition(&model.Competition{
		CompetitionID: competitionID,
		SportID:       gamesID,
		Name:          fmt.Sprintf("%s Olympics %d", strings.ToUpper(k.games[:1])+k.games[1:], k.year),
		SeasonYear:    model.Ptr(k.year),
		Level:         model.Ptr("multi_sport_games"),
		SourceID:      model.Ptr(ID),
	})
	out.Event(&model.Event{
		EventID:       eventID,
		CompetitionID: competitionID,
		DisciplineID:  model.Ptr(discipline.DisciplineID),
		Gender:        parseGender(k.event),
		EventClass:    model.Ptr(eventClass),
		TopN:          model.Ptr(base.DeclaredTopN(topN, len(sel.Entries))),
		TieOverrun:    sel.Overrun,
	})
	for _, e := range sel.Entries {
		out.Participant(e.Item.participant)
		r := e.Item.row
		out.Result(&model.Result{
			EventID:       eventID,
			ParticipantID: e.Item.participant.ParticipantID,
			Rank:          model.Ptr(e.Rank),
			Medal:         model.Ptr(r.Medal),
			ScoreRaw:      model.Ptr(fmt.Sprintf("place=%s;tied=%s;medal=%s", r.Place, r.Tied, r.Medal)),
		})
	}
	return nil
}

// podium 团体项目中同一国家同一奖牌的多名队员合并为一个国家队名次
func podium(out *base.Payload, rows []medalRow) ([]publication.Entry[podiumUnit], error) {
	type unitKey struct{ country, medal string }
	groups := make(map[unitKey][]medalRow)
	var order []unitKey
	for _, r := range rows {
		k := unitKey{r.Country, r.Medal}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	entries := make([]publication.Entry[podiumUnit], 0, len(order))
	for _, k := range order {
		group := groups[k]
		first := group[0]
		rank := placeRank(first)
		country := out.Country(first.Country, first.Country)

		if len(group) > 1 || first.Athlete == "" {
			entries = append(entries, publication.Entry[podiumUnit]{Rank: rank, Item: podiumUnit{participant: base.NationalTeam(country), row: first}})
			continue
		}
		pid, err := athleteID(first)
		if err != nil {
			return nil, err
		}
		entries = append(entries, publication.Entry[podiumUnit]{Rank: rank, Item: podiumUnit{
			participant: &model.Participant{
				ParticipantID:   pid,
				ParticipantType: model.ParticipantAthlete,
				DisplayName:     first.Athlete,
				CountryID:       model.Ptr(country.CountryID),
			},
			row: first,
		}})
	}
	return entries, nil
}

// placeRank 优先使用 place 列，缺失时由奖牌推导
func placeRank(r medalRow) int {
	if n, err := strconv.Atoi(strings.TrimSuffix(r.Place, ".0")); err == nil && n >= 1 {
		return n
	}
	return medalRank[r.Medal]
}

// athleteID 有数据集运动员 ID 时用 ID，否则用姓名加国家
func athleteID(r medalRow) (string, error) {
	if r.AthleteID != "" {
		return ident.HashID("athlete", ID, r.AthleteID)
	}
	return ident.HashID("athlete", ID, r.Athlete, r.Country)
}

func inferSport(discipline string) string {
	key := strings.ToLower(strings.TrimSpace(discipline))
	for _, p := range sportByPrefix {
		if strings.HasPrefix(key, p.prefix) {
			return p.sport
		}
	}
	switch {
	case strings.Contains(key, "skating"):
		return "Skating"
	case strings.Contains(key, "ski"):
		return "Skiing"
	case strings.Contains(key, "ice hockey"):
		return "Ice Hockey"
	}
	return strings.TrimSpace(discipline)
}

func parseGender(event string) *string {
	v := " " + strings.ToLower(event) + " "
	switch {
	case strings.Contains(v, " women"):
		return model.Ptr("women")
	case strings.Contains(v, " men ") || strings.Contains(v, " men's"):
		return model.Ptr("men")
	case strings.Contains(v, " mixed "):
		return model.Ptr("mixed")
	}
	return nil
}

// readMedals 只保留夏季/冬季奥运会中 year >= fromYear 的获奖行
func readMedals(path string, fromYear int) ([]medalRow, error) {
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
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := col[c]; !ok {
			return nil, base.ParseErr("奥运数据缺少列 %s", c)
		}
	}

	var rows []medalRow
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
		get := func(name string) string {
			i := col[name]
			if i >= len(rec) {
				return ""
			}
			v := strings.TrimSpace(rec[i])
			if strings.EqualFold(v, "nan") {
				return ""
			}
			return v
		}
		medal := strings.ToLower(get("medal"))
		if _, ok := medalRank[medal]; !ok {
			continue
		}
		games := strings.ToLower(get("type"))
		if games != "summer" && games != "winter" {
			continue
		}
		year, err := strconv.Atoi(get("year"))
		if err != nil || year < fromYear {
			continue
		}
		row := medalRow{
			Year:       year,
			Games:      games,
			Discipline: get("discipline"),
			Event:      get("event"),
			Athlete:    get("as"),
			AthleteID:  strings.TrimSuffix(get("athlete_id"), ".0"),
			Country:    countrycode.Normalize(get("noc")),
			Place:      get("place"),
			Tied:       get("tied"),
			Medal:      medal,
		}
		if row.Discipline == "" || row.Event == "" || row.Country == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
