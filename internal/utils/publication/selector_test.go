package publication

import (
	"fmt"
	"testing"
	"time"

	"SportsNations/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ranked(n int, prefix string) []Entry[string] {
	out := make([]Entry[string], n)
	for i := range out {
		out[i] = Entry[string]{Rank: i + 1, Item: fmt.Sprintf("%s%02d", prefix, i+1)}
	}
	return out
}

func TestSelectKeepsLatestPublicationOfYear(t *testing.T) {
	pubs := []Publication[string]{
		{EffectiveDate: date("2019-12-31"), Label: "dec", Entries: ranked(3, "dec")},
		{EffectiveDate: date("2019-06-01"), Label: "jun", Entries: ranked(3, "jun")},
	}
	sel, err := Select(pubs, Policy{TopN: 10})
	require.NoError(t, err)
	require.Len(t, sel, 1)
	assert.Equal(t, 2019, sel[0].Year)
	assert.Equal(t, date("2019-12-31"), sel[0].EffectiveDate)
	assert.Equal(t, "dec01", sel[0].Entries[0].Item)
}

func TestSelectOrderIndependent(t *testing.T) {
	a := Publication[string]{EffectiveDate: date("2019-06-01"), Entries: ranked(2, "a")}
	b := Publication[string]{EffectiveDate: date("2019-12-31"), Entries: ranked(2, "b")}
	s1, err := Select([]Publication[string]{a, b}, Policy{TopN: 2})
	require.NoError(t, err)
	s2, err := Select([]Publication[string]{b, a}, Policy{TopN: 2})
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestSelectTruncatesToTopN(t *testing.T) {
	pubs := []Publication[string]{{EffectiveDate: date("2020-12-10"), Entries: ranked(15, "t")}}
	sel, err := Select(pubs, Policy{TopN: 10})
	require.NoError(t, err)
	require.Len(t, sel, 1)
	assert.Len(t, sel[0].Entries, 10)
	assert.False(t, sel[0].Overrun)
}

func TestSelectTieOverrunAtBoundary(t *testing.T) {
	entries := ranked(15, "t")
	entries[10].Rank = 10 // 第 10、11 条并列第 10 名
	for i := 11; i < 15; i++ {
		entries[i].Rank = i + 1
	}
	pubs := []Publication[string]{{EffectiveDate: date("2021-12-01"), Entries: entries}}

	t.Run("declared ties", func(t *testing.T) {
		sel, err := Select(pubs, Policy{TopN: 10, AllowTies: true})
		require.NoError(t, err)
		require.Len(t, sel, 1)
		assert.Len(t, sel[0].Entries, 11)
		assert.True(t, sel[0].Overrun)
		assert.Equal(t, 10, sel[0].Entries[9].Rank)
		assert.Equal(t, 10, sel[0].Entries[10].Rank)
	})

	t.Run("ties not declared", func(t *testing.T) {
		sel, err := Select(pubs, Policy{TopN: 10})
		require.NoError(t, err)
		assert.Len(t, sel[0].Entries, 10)
		assert.False(t, sel[0].Overrun)
	})
}

func TestSelectTieInsideTopNIsNotOverrun(t *testing.T) {
	entries := []Entry[string]{{1, "a"}, {2, "b"}, {3, "c"}, {3, "d"}, {5, "e"}}
	sel, err := Select([]Publication[string]{{EffectiveDate: date("2016-08-21"), Entries: entries}},
		Policy{TopN: 3, AllowTies: true})
	require.NoError(t, err)
	assert.Len(t, sel[0].Entries, 4)
	assert.True(t, sel[0].Overrun)

	sel, err = Select([]Publication[string]{{EffectiveDate: date("2016-08-21"), Entries: entries}},
		Policy{TopN: 4, AllowTies: true})
	require.NoError(t, err)
	assert.Len(t, sel[0].Entries, 4)
	assert.False(t, sel[0].Overrun)
}

func TestSelectSortsByRankStable(t *testing.T) {
	entries := []Entry[string]{{3, "c"}, {1, "a"}, {2, "b1"}, {2, "b2"}}
	sel, err := Select([]Publication[string]{{EffectiveDate: date("2010-01-01"), Entries: entries}}, Policy{TopN: 4})
	require.NoError(t, err)
	items := make([]string, 0, 4)
	for _, e := range sel[0].Entries {
		items = append(items, e.Item)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, items)
}

func TestSelectEditionYearAndRange(t *testing.T) {
	pubs := []Publication[string]{
		{EditionYear: 2022, EffectiveDate: date("2022-12-18"), Entries: ranked(4, "wc22")},
		{EditionYear: 2018, EffectiveDate: date("2018-07-15"), Entries: ranked(4, "wc18")},
		{EditionYear: 2014, EffectiveDate: date("2014-07-13"), Entries: ranked(4, "wc14")},
	}
	sel, err := Select(pubs, Policy{TopN: 4, FromYear: 2018})
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, 2018, sel[0].Year)
	assert.Equal(t, 2022, sel[1].Year)

	sel, err = Select(pubs, Policy{TopN: 4, UntilYear: 2017})
	require.NoError(t, err)
	require.Len(t, sel, 1)
	assert.Equal(t, 2014, sel[0].Year)
}

func TestSelectEmptyYearYieldsNothing(t *testing.T) {
	sel, err := Select[string](nil, Policy{TopN: 10})
	require.NoError(t, err)
	assert.Empty(t, sel)

	sel, err = Select([]Publication[string]{{EffectiveDate: date("2001-01-01")}}, Policy{TopN: 10})
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestSelectAmbiguousSameDate(t *testing.T) {
	pubs := []Publication[string]{
		{EffectiveDate: date("2019-12-19"), Label: "a", Entries: ranked(2, "a")},
		{EffectiveDate: date("2019-12-19"), Label: "b", Entries: ranked(2, "b")},
	}
	_, err := Select(pubs, Policy{TopN: 2})
	assert.ErrorIs(t, err, model.ErrAmbiguousPublication)

	// 较新的发布出现后，旧日期的重复不再构成歧义
	pubs = append(pubs, Publication[string]{EffectiveDate: date("2019-12-20"), Label: "c", Entries: ranked(2, "c")})
	sel, err := Select(pubs, Policy{TopN: 2})
	require.NoError(t, err)
	assert.Equal(t, "c01", sel[0].Entries[0].Item)
}

func TestSelectRejectsInvalidInput(t *testing.T) {
	_, err := Select([]Publication[string]{{EffectiveDate: date("2019-01-01"), Entries: []Entry[string]{{0, "x"}}}}, Policy{TopN: 1})
	assert.ErrorIs(t, err, model.ErrParse)

	_, err = Select[string](nil, Policy{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
