package footballdata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SportsNations/internal/adapter/base"
	"SportsNations/internal/config"
	"SportsNations/internal/model"
	"SportsNations/internal/utils/ident"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const competitionsBody = `{"competitions":[
 {"id":2000,"name":"FIFA World Cup","code":"WC","type":"CUP","currentSeason":{"startDate":"2022-11-20","endDate":"2022-12-18"}},
 {"id":2018,"name":"European Championship","code":"EC","type":"CUP"},
 {"id":2021,"name":"Premier League","code":"PL","type":"LEAGUE"}
]}`

const standingsBody = `{"competition":{"id":2000,"name":"FIFA World Cup","code":"WC"},
 "season":{"startDate":"2022-11-20","endDate":"2022-12-18"},
 "standings":[
  {"stage":"GROUP_STAGE","type":"TOTAL","group":"GROUP_A","table":[
   {"position":1,"team":{"id":759,"name":"Netherlands","tla":"NED","area":{"code":"NLD"}},"points":7},
   {"position":2,"team":{"id":760,"name":"Senegal","tla":"SEN"},"points":6}
  ]},
  {"stage":"GROUP_STAGE","type":"HOME","group":"GROUP_A","table":[
   {"position":1,"team":{"id":759,"name":"Netherlands","tla":"NED"},"points":3}
  ]},
  {"stage":"GROUP_STAGE","type":"TOTAL","group":"GROUP_B","table":[
   {"position":1,"team":{"id":770,"name":"England","tla":"ENG"},"points":7}
  ]}
 ]}`

func newAdapter(cfg config.ConnectorConfig) *Adapter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	a := NewFootballDataAdapter(&cfg, l).(*Adapter)
	a.Client.InitialInterval = time.Millisecond
	a.Client.MaxInterval = time.Millisecond
	return a
}

func TestFetchWithoutTokenIsSkipped(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	res := a.Fetch(context.Background(), 2022, t.TempDir())
	assert.Equal(t, model.ImportSkipped, res.Status)
	assert.ErrorIs(t, res.Err, model.ErrMissingCredential)
	assert.Empty(t, res.Dir, "跳过时不创建快照目录")
}

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/competitions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(authHeader))
		_, _ = w.Write([]byte(competitionsBody))
	})
	mux.HandleFunc("/competitions/WC/standings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2022", r.URL.Query().Get("season"))
		_, _ = w.Write([]byte(standingsBody))
	})
	mux.HandleFunc("/competitions/EC/standings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	return httptest.NewServer(mux)
}

func TestFetchAndParseStandings(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	a := newAdapter(config.ConnectorConfig{BaseURL: srv.URL, AuthToken: "secret"})
	res := a.Fetch(context.Background(), 2022, t.TempDir())
	require.True(t, res.OK(), "%v", res.Err)
	// competitions + WC + EC（失败也保留在快照里）
	assert.Len(t, res.Paths, 3)
	assert.Equal(t, []string{"EC"}, res.Meta["failed_competitions"])

	payload, err := a.Parse(res.Paths, 2022)
	require.NoError(t, err)
	require.Len(t, payload.Competitions, 1)
	comp := payload.Competitions[0]
	assert.Equal(t, "FIFA World Cup", comp.Name)
	assert.Equal(t, "2022-12-18", *comp.EndDate)
	assert.Equal(t, "cup", *comp.Level)

	require.Len(t, payload.Events, 1)
	assert.Nil(t, payload.Events[0].TopN)

	require.Len(t, payload.Results, 3, "只取 TOTAL 表")
	nl, err := ident.HashID("team", ID, "759")
	require.NoError(t, err)
	assert.Equal(t, nl, payload.Results[0].ParticipantID)
	assert.Equal(t, "group=GROUP_A;points=7", *payload.Results[0].ScoreRaw)
	assert.InDelta(t, 7, *payload.Results[0].PointsAwarded, 0.001)

	countries := map[string]bool{}
	for _, p := range payload.Participants {
		require.NotNil(t, p.CountryID)
		countries[*p.CountryID] = true
	}
	assert.True(t, countries["NLD"])
	assert.True(t, countries["SEN"])
	assert.True(t, countries["ENG"])
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newAdapter(config.ConnectorConfig{BaseURL: srv.URL, AuthToken: "secret", RetryCount: 2})
	res := a.Fetch(context.Background(), 2022, t.TempDir())
	assert.Equal(t, model.ImportError, res.Status)
	assert.ErrorIs(t, res.Err, model.ErrSourceUnreachable)
	var statusErr *base.StatusError
	assert.ErrorAs(t, res.Err, &statusErr)
}

func TestParseSkipsFailedCompetitionStub(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "standings_EC_2022.json")
	require.NoError(t, os.WriteFile(stub, failureStub("EC", 2022, errors.New("403 Forbidden")), 0o644))
	list := filepath.Join(dir, "competitions_2022.json")
	require.NoError(t, os.WriteFile(list, []byte(competitionsBody), 0o644))

	a := newAdapter(config.ConnectorConfig{})
	payload, err := a.Parse([]string{list, stub}, 2022)
	require.NoError(t, err, "失败占位文件必须能被解析并跳过")
	assert.Empty(t, payload.Competitions)
	assert.Empty(t, payload.Results)
}
