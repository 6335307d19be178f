package olympics

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `year,type,discipline,event,as,athlete_id,noc,team,place,tied,medal
2020,Summer,Judo,Men -66 kg,Hifumi Abe,1,JPN,,1,False,Gold
2020,Summer,Judo,Men -66 kg,Vazha Margvelashvili,2,GEO,,2,False,Silver
2020,Summer,Judo,Men -66 kg,Baul An,3,KOR,,3,True,Bronze
2020,Summer,Judo,Men -66 kg,Daniel Cargnin,4,BRA,,3,True,Bronze
2020,Summer,Judo,Men -66 kg,Someone Else,5,FRA,,5,False,
2020,Summer,Basketball,Basketball Women,A One,10,USA,,1,False,Gold
2020,Summer,Basketball,Basketball Women,A Two,11,USA,,1,False,Gold
2020,Summer,Basketball,Basketball Women,B One,12,JPN,,2,False,Silver
2020,Summer,Basketball,Basketball Women,B Two,13,JPN,,2,False,Silver
2020,Summer,Basketball,Basketball Women,C One,14,FRA,,3,False,Bronze
2020,Summer,Basketball,Basketball Women,C Two,15,FRA,,3,False,Bronze
2016,Summer,Judo,Men -66 kg,Fabio Basile,20,ITA,,1,False,Gold
1988,Summer,Wrestling Freestyle,Men 48 kg,X,30,URS,,1,False,Gold
2022,Winter,Cross Country Skiing,Women 10 km,Y,40,NOR,,1,False,Gold
2021,Intercalated,Judo,Men -66 kg,Z,50,JPN,,1,False,Gold
`

func newAdapter() *Adapter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewOlympicsAdapter(&config.ConnectorConfig{}, l).(*Adapter)
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), seedFile)
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func eventResults(p *model.NormalizedPayload, eventID string) []*model.Result {
	var out []*model.Result
	for _, r := range p.Results {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out
}

func TestParsePodiumWithTiedBronze(t *testing.T) {
	payload, err := newAdapter().Parse([]string{writeSample(t)}, 2020)
	require.NoError(t, err)

	judo := eventResults(payload, "olympics_summer_2020_judo_men-66-kg")
	require.Len(t, judo, 4, "并列铜牌超出领奖台人数")
	assert.Equal(t, 3, *judo[2].Rank)
	assert.Equal(t, 3, *judo[3].Rank)
	assert.Equal(t, "bronze", *judo[3].Medal)
	assert.Nil(t, judo[0].PointsAwarded)

	var judoEvent *model.Event
	for _, e := range payload.Events {
		if e.EventID == "olympics_summer_2020_judo_men-66-kg" {
			judoEvent = e
		}
	}
	require.NotNil(t, judoEvent)
	assert.Equal(t, 3, *judoEvent.TopN)
	assert.True(t, judoEvent.TieOverrun, "并列超出须在 event 上声明")
	assert.Equal(t, "men", *judoEvent.Gender)
	assert.Equal(t, "judo", *judoEvent.DisciplineID)
}

func TestParseCollapsesTeamMembers(t *testing.T) {
	payload, err := newAdapter().Parse([]string{writeSample(t)}, 2020)
	require.NoError(t, err)

	basketball := eventResults(payload, "olympics_summer_2020_basketball_basketball-women")
	require.Len(t, basketball, 3)
	for _, e := range payload.Events {
		if e.EventID == "olympics_summer_2020_basketball_basketball-women" {
			assert.False(t, e.TieOverrun)
		}
	}
	assert.Equal(t, "USA", basketball[0].ParticipantID)
	assert.Equal(t, "JPN", basketball[1].ParticipantID)
	assert.Equal(t, "FRA", basketball[2].ParticipantID)

	for _, p := range payload.Participants {
		if p.ParticipantID == "USA" {
			assert.Equal(t, model.ParticipantTeam, p.ParticipantType)
		}
	}
}

func TestParseFiltersYearsAndGames(t *testing.T) {
	payload, err := newAdapter().Parse([]string{writeSample(t)}, 2020)
	require.NoError(t, err)
	for _, c := range payload.Competitions {
		assert.GreaterOrEqual(t, *c.SeasonYear, 2020)
	}
	ids := map[string]bool{}
	for _, c := range payload.Competitions {
		ids[c.CompetitionID] = true
	}
	assert.True(t, ids["olympics_winter_2022"])
	assert.False(t, ids["olympics_intercalated_2021"])

	sports := map[string]string{}
	for _, d := range payload.Disciplines {
		sports[d.DisciplineID] = d.SportID
	}
	assert.Equal(t, "skiing", sports["cross-country-skiing"])
}

func TestParseHistoricalNOC(t *testing.T) {
	payload, err := newAdapter().Parse([]string{writeSample(t)}, 1980)
	require.NoError(t, err)
	res := eventResults(payload, "olympics_summer_1988_wrestling-freestyle_men-48-kg")
	require.Len(t, res, 1)

	var athlete *model.Participant
	for _, p := range payload.Participants {
		if p.ParticipantID == res[0].ParticipantID {
			athlete = p
		}
	}
	require.NotNil(t, athlete)
	assert.Equal(t, model.ParticipantAthlete, athlete.ParticipantType)
	assert.Equal(t, "URS", *athlete.CountryID)

	sports := map[string]string{}
	for _, d := range payload.Disciplines {
		sports[d.DisciplineID] = d.SportID
	}
	assert.Equal(t, "wrestling", sports["wrestling-freestyle"])
}

func TestAthleteIDIsStable(t *testing.T) {
	a, err := athleteID(medalRow{AthleteID: "1", Athlete: "Hifumi Abe", Country: "JPN"})
	require.NoError(t, err)
	b, err := athleteID(medalRow{AthleteID: "1", Athlete: "ABE Hifumi", Country: "JPN"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseNoMedals(t *testing.T) {
	_, err := newAdapter().Parse([]string{writeSample(t)}, 2030)
	assert.ErrorIs(t, err, model.ErrParse)
}
