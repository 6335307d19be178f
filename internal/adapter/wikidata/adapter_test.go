package wikidata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(cfg config.ConnectorConfig) *Adapter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	a := NewWikidataAdapter(&cfg, l).(*Adapter)
	a.Client.InitialInterval = time.Millisecond
	a.Client.MaxInterval = time.Millisecond
	return a
}

const liveResponse = `{"results":{"bindings":[
 {"sport":{"type":"uri","value":"http://www.wikidata.org/entity/Q847"},"sportLabel":{"type":"literal","value":"Tennis"},
  "federation":{"type":"uri","value":"http://www.wikidata.org/entity/Q31080"},"federationLabel":{"type":"literal","value":"International Tennis Federation"}},
 {"sport":{"type":"uri","value":"http://www.wikidata.org/entity/Q847"},"sportLabel":{"type":"literal","value":"Tennis"},
  "federation":{"type":"uri","value":"http://www.wikidata.org/entity/Q31080"},"federationLabel":{"type":"literal","value":"International Tennis Federation"}},
 {"sport":{"type":"uri","value":"http://www.wikidata.org/entity/Q1"},"sportLabel":{"type":"literal","value":"Q99999"}},
 {"sport":{"type":"uri","value":"http://www.wikidata.org/entity/Q7"},"sportLabel":{"type":"literal","value":"Pétanque"}}
]}}`

func TestFetchAndParseLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Contains(t, r.URL.Query().Get("query"), "wdt:P2416")
		_, _ = w.Write([]byte(liveResponse))
	}))
	defer srv.Close()

	a := newAdapter(config.ConnectorConfig{BaseURL: srv.URL})
	res := a.Fetch(context.Background(), 2024, t.TempDir())
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, model.OriginRemote, res.Origin)

	payload, err := a.Parse(res.Paths, 2024)
	require.NoError(t, err)
	require.Len(t, payload.Sports, 2)
	assert.Equal(t, "tennis", payload.Sports[0].SportID)
	assert.Equal(t, "petanque", payload.Sports[1].SportID)
	require.Len(t, payload.Federations, 1)
	assert.Equal(t, "Q31080", payload.Federations[0].FederationQID)
	assert.Equal(t, "International Tennis Federation", *payload.Federations[0].FederationName)
	assert.Empty(t, payload.Results)
}

func TestFetchFallsBackToEmbeddedSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newAdapter(config.ConnectorConfig{BaseURL: srv.URL, RetryCount: 2})
	res := a.Fetch(context.Background(), 2024, t.TempDir())
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, model.OriginLocalSeed, res.Origin)
	assert.Contains(t, res.Meta["remote_error"], "502")

	payload, err := a.Parse(res.Paths, 2024)
	require.NoError(t, err)
	assert.Len(t, payload.Sports, 3)
	assert.Len(t, payload.Federations, 3)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	a := newAdapter(config.ConnectorConfig{})
	path := filepath.Join(t.TempDir(), snapshotFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := a.Parse([]string{path}, 2024)
	assert.ErrorIs(t, err, model.ErrParse)
}
