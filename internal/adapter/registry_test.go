package adapter

import (
	"io"
	"testing"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRegistryBuiltins(t *testing.T) {
	cfg := config.Default()
	cfg.Connectors["football_data"] = config.ConnectorConfig{AuthToken: "x"}
	r := NewRegistry(cfg, quietLogger())

	assert.Equal(t, []string{"fifa_ranking_history", "football_data", "olympics_medals", "wikidata_sports", "world_cup_history"}, r.List())
	for _, id := range r.List() {
		c, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID())
		assert.Equal(t, id, c.Source().SourceID, "source_id 与 connector 标识一致")
	}
}

func TestRegistryUnknownConnector(t *testing.T) {
	r := NewRegistry(config.Default(), quietLogger())
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, model.ErrUnknownConnector)
}

func TestListFactoriesSorted(t *testing.T) {
	ids := ListFactories()
	assert.IsIncreasing(t, ids)
	_, ok := GetFactory("olympics_medals")
	assert.True(t, ok)
}
