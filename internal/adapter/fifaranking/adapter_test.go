package fifaranking

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codes = []struct{ code, name string }{
	{"BEL", "Belgium"}, {"FRA", "France"}, {"BRA", "Brazil"}, {"ENG", "England"},
	{"URU", "Uruguay"}, {"CRO", "Croatia"}, {"POR", "Portugal"}, {"ESP", "Spain"},
	{"ARG", "Argentina"}, {"COL", "Colombia"}, {"MEX", "Mexico"}, {"SUI", "Switzerland"},
}

func newAdapter(cfg config.ConnectorConfig) *Adapter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewFifaRankingAdapter(&cfg, l).(*Adapter)
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranking.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// datoCSV 构造 rank,country_full,country_abrv,total_points,rank_date 格式的发布
func datoCSV(dates ...string) string {
	var sb strings.Builder
	sb.WriteString("rank,country_full,country_abrv,total_points,previous_points,rank_date\n")
	for d, date := range dates {
		for i := range codes {
			// 每次发布把名单轮换一位，保证不同发布的前 10 名不同
			entry := codes[(i+d)%len(codes)]
			fmt.Fprintf(&sb, "%d,%s,%s,%d,0,%s\n", i+1, entry.name, entry.code, 1800-i*10, date)
		}
	}
	return sb.String()
}

func TestParseKeepsLatestPublicationOfYear(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	path := writeCSV(t, datoCSV("2019-06-01", "2019-12-19", "2020-02-20"))

	payload, err := a.Parse([]string{path}, 2019)
	require.NoError(t, err)

	require.Len(t, payload.Events, 1)
	ev := payload.Events[0]
	assert.Equal(t, "fifa_ranking_2019_men", ev.EventID)
	assert.Equal(t, "2019-12-19", *ev.EventDate)
	assert.Equal(t, 10, *ev.TopN)
	assert.Equal(t, eventClass, *ev.EventClass)

	require.Len(t, payload.Results, 10)
	first := payload.Results[0]
	// 第二次发布轮换一位：第 1 名是 France
	assert.Equal(t, "FRA", first.ParticipantID)
	assert.Equal(t, 1, *first.Rank)
	assert.Equal(t, "gold", *first.Medal)
	assert.Equal(t, "fifa_points=1800", *first.ScoreRaw)
	assert.InDelta(t, 1800, *first.PointsAwarded, 0.001)
	assert.Nil(t, payload.Results[5].Medal)

	ids := map[string]bool{}
	for _, c := range payload.Countries {
		ids[c.CountryID] = true
	}
	assert.True(t, ids["URY"], "FIFA 代码 URU 映射为 URY")
	assert.True(t, ids["ENG"], "历史/体育专用代码保留")
	require.Len(t, payload.Sources, 1)
	assert.Equal(t, ID, payload.Sources[0].SourceID)
	assert.Equal(t, "football", payload.Sports[0].SportID)
	assert.Equal(t, "fifa-men-ranking", payload.Disciplines[0].DisciplineID)
}

func TestParseMultipleYears(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{TopN: 5})
	path := writeCSV(t, datoCSV("2018-12-20", "2019-12-19", "2020-02-20"))

	payload, err := a.Parse([]string{path}, 2024)
	require.NoError(t, err)
	require.Len(t, payload.Events, 3)
	assert.Len(t, payload.Results, 15)
	assert.Len(t, payload.Competitions, 3)
	assert.Equal(t, 2018, *payload.Competitions[0].SeasonYear)
}

func TestParseDerivesRankFromPoints(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	body := "team,team_short,total_points,date\n" +
		"Brazil,BRA,1700,2020-12-10\n" +
		"Belgium,BEL,1780,2020-12-10\n" +
		"IR Iran,IRN,1500,2020-12-10\n"
	payload, err := a.Parse([]string{writeCSV(t, body)}, 2020)
	require.NoError(t, err)
	require.Len(t, payload.Results, 3)
	assert.Equal(t, "BEL", payload.Results[0].ParticipantID)
	assert.Equal(t, 1, *payload.Results[0].Rank)
	assert.Equal(t, "IRN", payload.Results[2].ParticipantID)
	assert.Equal(t, 3, *payload.Results[2].Rank)
}

func TestParseRejectsUnknownLayout(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	_, err := a.Parse([]string{writeCSV(t, "a,b\n1,2\n")}, 2020)
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestParseRejectsBadRank(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	body := "rank,country_full,country_abrv,total_points,rank_date\n" +
		"x,France,FRA,1700,2020-12-10\n"
	_, err := a.Parse([]string{writeCSV(t, body)}, 2020)
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestParseIgnoresMetaFile(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	dir := t.TempDir()
	meta := filepath.Join(dir, "fetch_meta.json")
	require.NoError(t, os.WriteFile(meta, []byte("{}"), 0o644))
	_, err := a.Parse([]string{meta}, 2020)
	assert.ErrorIs(t, err, model.ErrParse)
}
