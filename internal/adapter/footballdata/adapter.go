// Package footballdata football-data.org v4：国家队赛事的积分榜。
package footballdata

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"SportsNations/internal/adapter/base"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"
	"SportsNations/internal/utils/countrycode"
	"SportsNations/internal/utils/ident"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	ID         = "football_data"
	defaultURL = "https://api.football-data.org/v4"
	authHeader = "X-Auth-Token"
	eventClass = "standings"
)

// nationalCompetitions 国家队赛事代码
var nationalCompetitions = map[string]bool{
	"WC": true, "EC": true, "UNL": true, "WQC": true, "EQC": true, "WWC": true, "ENC": true,
}

type Adapter struct {
	base.Base
}

func NewFootballDataAdapter(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector {
	return &Adapter{Base: base.NewBase(ID, cfg, logger)}
}

func (a *Adapter) Source() *model.Source {
	return &model.Source{
		SourceID:     ID,
		SourceName:   "football-data.org",
		SourceType:   "api",
		LicenseNotes: model.Ptr("Free tier terms apply; do not republish restricted payloads."),
		BaseURL:      model.Ptr(a.BaseURL(defaultURL)),
	}
}

// Fetch 缺少凭证时跳过；单个赛事积分榜失败只记录在快照里，不影响其他赛事
func (a *Adapter) Fetch(ctx context.Context, seasonYear int, outDir string) model.SnapshotResult {
	token := strings.TrimSpace(a.Cfg.AuthToken)
	if token == "" {
		return model.Skipped(fmt.Errorf("%w: FOOTBALL_DATA_TOKEN 未配置", model.ErrMissingCredential))
	}
	headers := map[string]string{authHeader: token}
	baseURL := strings.TrimRight(a.BaseURL(defaultURL), "/")
	log := a.Logger.WithField("connector", ID)

	dir, err := base.NewSnapshotDir(outDir, ID, a.Now())
	if err != nil {
		return model.Failed("", err)
	}
	compURL := baseURL + "/competitions"
	data, err := a.Client.Get(ctx, base.Request{URL: compURL, Headers: headers})
	if err != nil {
		return model.Failed(dir, err)
	}
	compPath, err := base.WriteRaw(dir, fmt.Sprintf("competitions_%d.json", seasonYear), data)
	if err != nil {
		return model.Failed(dir, err)
	}
	var list competitionList
	if err := json.Unmarshal(data, &list); err != nil {
		return model.Failed(dir, base.WrapParse(err, "解析赛事列表"))
	}

	paths := []string{compPath}
	urls := []string{compURL}
	var failed []string
	for _, code := range list.nationalCodes() {
		standingsURL := fmt.Sprintf("%s/competitions/%s/standings", baseURL, code)
		body, err := a.Client.Get(ctx, base.Request{
			URL:     standingsURL,
			Query:   url.Values{"season": {strconv.Itoa(seasonYear)}},
			Headers: headers,
		})
		if err != nil {
			if ctx.Err() != nil {
				return model.Failed(dir, err)
			}
			log.WithError(err).WithField("competition", code).Warn("积分榜抓取失败")
			failed = append(failed, code)
			body = failureStub(code, seasonYear, err)
		}
		path, err := base.WriteRaw(dir, fmt.Sprintf("standings_%s_%d.json", code, seasonYear), body)
		if err != nil {
			return model.Failed(dir, err)
		}
		paths = append(paths, path)
		urls = append(urls, standingsURL)
	}

	meta := map[string]interface{}{"origin": string(model.OriginRemote), "urls": urls, "season": seasonYear}
	if len(failed) > 0 {
		meta["failed_competitions"] = failed
	}
	if err := base.WriteMeta(dir, meta); err != nil {
		return model.Failed(dir, err)
	}
	return model.Fetched(model.OriginRemote, dir, paths, meta)
}

// failureStub 抓取失败的赛事在快照里留一个占位文件；键名不得与 standingsResponse 的字段冲突
func failureStub(code string, seasonYear int, cause error) []byte {
	body, _ := json.Marshal(map[string]interface{}{"error": cause.Error(), "competition_code": code, "season_year": seasonYear})
	return body
}

type area struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	CountryCode string `json:"countryCode"`
}

type season struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type competition struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	Type          string  `json:"type"`
	CurrentSeason *season `json:"currentSeason"`
}

type competitionList struct {
	Competitions []competition `json:"competitions"`
}

func (l competitionList) nationalCodes() []string {
	var codes []string
	for _, c := range l.Competitions {
		code := strings.ToUpper(c.Code)
		if nationalCompetitions[code] {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

type teamRef struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	TLA       string `json:"tla"`
	Area      *area  `json:"area"`
}

type tableRow struct {
	Position int     `json:"position"`
	Team     teamRef `json:"team"`
	Points   *int    `json:"points"`
}

type standing struct {
	Stage string     `json:"stage"`
	Type  string     `json:"type"`
	Group string     `json:"group"`
	Table []tableRow `json:"table"`
}

type standingsResponse struct {
	Error       string       `json:"error"`
	Competition *competition `json:"competition"`
	Season      *season      `json:"season"`
	Standings   []standing   `json:"standings"`
}

func (a *Adapter) Parse(rawPaths []string, seasonYear int) (*model.NormalizedPayload, error) {
	lookup := map[string]competition{}
	var standingsFiles []string
	for _, path := range base.DataFiles(rawPaths) {
		name := filepath.Base(path)
		switch {
		case strings.HasPrefix(name, "competitions_"):
			var list competitionList
			if err := readJSON(path, &list); err != nil {
				return nil, err
			}
			for _, c := range list.Competitions {
				lookup[strings.ToUpper(c.Code)] = c
			}
		case strings.HasPrefix(name, "standings_"):
			standingsFiles = append(standingsFiles, path)
		}
	}
	sort.Strings(standingsFiles)

	out := base.NewPayload(a.Source())
	sport, err := base.SportRow("Football")
	if err != nil {
		return nil, err
	}
	out.Sport(sport)

	for _, path := range standingsFiles {
		var resp standingsResponse
		if err := readJSON(path, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			continue
		}
		if err := a.addStandings(out, sport.SportID, path, resp, lookup, seasonYear); err != nil {
			return nil, err
		}
	}
	return out.Build(), nil
}

func (a *Adapter) addStandings(out *base.Payload, sportID, path string, resp standingsResponse, lookup map[string]competition, seasonYear int) error {
	code := ""
	if resp.Competition != nil {
		code = strings.ToUpper(resp.Competition.Code)
	}
	if code == "" {
		parts := strings.Split(filepath.Base(path), "_")
		if len(parts) < 2 {
			return base.ParseErr("无法从文件名 %s 识别赛事代码", filepath.Base(path))
		}
		code = strings.ToUpper(parts[1])
	}
	info := lookup[code]
	name := info.Name
	if resp.Competition != nil && resp.Competition.Name != "" {
		name = resp.Competition.Name
	}
	if name == "" {
		name = code
	}
	s := resp.Season
	if s == nil {
		s = info.CurrentSeason
	}

	competitionID, err := ident.HashID("competition", ID, code, ident.Year(seasonYear))
	if err != nil {
		return err
	}
	eventID, err := ident.HashID("event", ID, competitionID, eventClass)
	if err != nil {
		return err
	}
	level := info.Type
	if level == "" {
		level = "national_team"
	}
	comp := &model.Competition{
		CompetitionID: competitionID,
		SportID:       sportID,
		Name:          name,
		SeasonYear:    model.Ptr(seasonYear),
		Level:         model.Ptr(strings.ToLower(level)),
		SourceID:      model.Ptr(ID),
	}
	ev := &model.Event{
		EventID:       eventID,
		CompetitionID: competitionID,
		Gender:        model.Ptr("men"),
		EventClass:    model.Ptr(eventClass),
	}
	if code == "WWC" {
		ev.Gender = model.Ptr("women")
	}
	if s != nil {
		comp.StartDate = model.StrPtr(s.StartDate)
		comp.EndDate = model.StrPtr(s.EndDate)
		ev.EventDate = model.StrPtr(s.EndDate)
	}
	out.Competition(comp)
	out.Event(ev)

	for _, st := range resp.Standings {
		if st.Type != "" && !strings.EqualFold(st.Type, "TOTAL") {
			continue
		}
		for _, row := range st.Table {
			participant, err := a.team(out, row.Team)
			if err != nil {
				return err
			}
			out.Participant(participant)
			res := &model.Result{EventID: eventID, ParticipantID: participant.ParticipantID}
			if row.Position >= 1 {
				res.Rank = model.Ptr(row.Position)
				res.Medal = base.MedalForRank(row.Position)
			}
			score := []string{}
			if st.Group != "" {
				score = append(score, "group="+st.Group)
			}
			if row.Points != nil {
				score = append(score, fmt.Sprintf("points=%d", *row.Points))
				res.PointsAwarded = model.Ptr(float64(*row.Points))
			}
			res.ScoreRaw = model.StrPtr(strings.Join(score, ";"))
			out.Result(res)
		}
	}
	return nil
}

// team 参赛方 ID 由数据源球队 ID 派生；国家由三字母缩写或地区 ISO2 代码解析
func (a *Adapter) team(out *base.Payload, t teamRef) (*model.Participant, error) {
	key := ""
	if t.ID != 0 {
		key = strconv.Itoa(t.ID)
	} else {
		key = strings.TrimSpace(t.Name)
	}
	if key == "" {
		return nil, base.ParseErr("积分榜中存在没有 ID 与名称的球队")
	}
	pid, err := ident.HashID("team", ID, key)
	if err != nil {
		return nil, err
	}
	display := t.Name
	if display == "" {
		display = t.ShortName
	}
	if display == "" {
		display = key
	}
	p := &model.Participant{ParticipantID: pid, ParticipantType: model.ParticipantTeam, DisplayName: display}
	if code, ok := resolveCountry(t); ok {
		p.CountryID = model.Ptr(out.Country(code, display).CountryID)
	}
	return p, nil
}

func resolveCountry(t teamRef) (string, bool) {
	if code := countrycode.Normalize(t.TLA); len(code) == 3 {
		if _, ok := countrycode.Lookup(code); ok {
			return code, true
		}
	}
	if t.Area != nil {
		if code, ok := countrycode.FromISO2(t.Area.CountryCode); ok {
			return code, true
		}
		if code := countrycode.Normalize(t.Area.Code); len(code) == 3 {
			if _, ok := countrycode.Lookup(code); ok {
				return code, true
			}
		}
	}
	return "", false
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取快照失败: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return base.WrapParse(err, filepath.Base(path))
	}
	return nil
}
