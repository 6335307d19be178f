package countrycode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupISO(t *testing.T) {
	info, ok := Lookup("fra")
	require.True(t, ok)
	assert.Equal(t, "FRA", info.Code)
	assert.Equal(t, "FR", info.ISO2)
	assert.Equal(t, "France", info.NameEN)

	_, ok = Lookup("XYZ")
	assert.False(t, ok)
}

func TestLookupHistorical(t *testing.T) {
	info, ok := Lookup("URS")
	require.True(t, ok)
	assert.Empty(t, info.ISO2)
	assert.Equal(t, "Soviet Union", info.NameEN)
}

func TestNormalizeAliases(t *testing.T) {
	assert.Equal(t, "DEU", Normalize("GER"))
	assert.Equal(t, "DEU", Normalize("frg"))
	assert.Equal(t, "NLD", Normalize("NED"))
	assert.Equal(t, "BRA", Normalize(" bra "))
}

func TestFromISO2(t *testing.T) {
	code, ok := FromISO2("br")
	require.True(t, ok)
	assert.Equal(t, "BRA", code)
	_, ok = FromISO2("QQ")
	assert.False(t, ok)
}

func TestAllContainsCountriesAndHistorical(t *testing.T) {
	all := All()
	codes := make(map[string]bool, len(all))
	for _, info := range all {
		assert.Len(t, info.Code, 3)
		codes[info.Code] = true
	}
	for _, c := range []string{"FRA", "BRA", "JPN", "USA", "ENG", "TCH"} {
		assert.True(t, codes[c], c)
	}
	assert.Greater(t, len(all), 200)
}

func TestRowIsStable(t *testing.T) {
	a := Row("ARG", "Argentine")
	b := Row("ARG", "")
	assert.Equal(t, a, b)
	assert.Equal(t, "AR", *a.ISO2)

	unknown := Row("QQQ", "Atlantis")
	assert.Nil(t, unknown.ISO2)
	assert.Equal(t, "Atlantis", unknown.NameEN)
}

func TestByEnglishName(t *testing.T) {
	code, ok := ByEnglishName("  france ")
	require.True(t, ok)
	assert.Equal(t, "FRA", code)
	code, ok = ByEnglishName("England")
	require.True(t, ok)
	assert.Equal(t, "ENG", code)
	_, ok = ByEnglishName("Fraance")
	assert.False(t, ok)
}

func TestAllSkipsUnassignedRegions(t *testing.T) {
	for _, info := range All() {
		assert.NotEmpty(t, info.NameEN, info.Code)
	}
	codes := make(map[string]bool)
	for _, info := range All() {
		codes[info.Code] = true
	}
	for _, c := range []string{"ANT", "FXX", "TMP", "BUR", "NTZ", "YMD"} {
		assert.False(t, codes[c], c)
	}

	_, ok := Lookup("ANT")
	assert.False(t, ok)
	_, ok = FromISO2("FX")
	assert.False(t, ok)

	// 已废止的 CS/DD 不得覆盖历史表中的同名代码
	info, ok := Lookup("SCG")
	require.True(t, ok)
	assert.Equal(t, "Serbia and Montenegro", info.NameEN)
	assert.Empty(t, info.ISO2)
}

func TestByEnglishNamePrefersAssignedCountry(t *testing.T) {
	code, ok := ByEnglishName("France")
	require.True(t, ok)
	assert.Equal(t, "FRA", code)
	code, ok = ByEnglishName("Germany")
	require.True(t, ok)
	assert.Equal(t, "DEU", code)
}
