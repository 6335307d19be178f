package repository

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := Open(&config.StoreConfig{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "store.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePayload() *model.NormalizedPayload {
	return &model.NormalizedPayload{
		Countries: []*model.Country{
			{CountryID: "FRA", ISO2: model.Ptr("FR"), ISO3: "FRA", NameEN: "France"},
			{CountryID: "BRA", ISO2: model.Ptr("BR"), ISO3: "BRA", NameEN: "Brazil"},
		},
		Sports:  []*model.Sport{{SportID: "football", SportName: "Football"}},
		Sources: []*model.Source{{SourceID: "test_src", SourceName: "Test source", SourceType: "csv"}},
		Competitions: []*model.Competition{{
			CompetitionID: "comp_1", SportID: "football", Name: "Test Cup",
			SeasonYear: model.Ptr(2022), SourceID: model.Ptr("test_src"),
		}},
		Events: []*model.Event{{EventID: "ev_1", CompetitionID: "comp_1", EventClass: model.Ptr("final_ranking"), TopN: model.Ptr(2)}},
		Participants: []*model.Participant{
			{ParticipantID: "FRA", ParticipantType: model.ParticipantTeam, DisplayName: "France", CountryID: model.Ptr("FRA")},
			{ParticipantID: "BRA", ParticipantType: model.ParticipantTeam, DisplayName: "Brazil", CountryID: model.Ptr("BRA")},
		},
		Results: []*model.Result{
			{EventID: "ev_1", ParticipantID: "FRA", Rank: model.Ptr(1), Medal: model.Ptr("gold")},
			{EventID: "ev_1", ParticipantID: "BRA", Rank: model.Ptr(2), Medal: model.Ptr("silver")},
		},
	}
}

func count(t *testing.T, s *Store, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(m).Count(&n).Error)
	return n
}

func TestApplyInsertsThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, model.TableCount{Inserted: 2}, first.Tables["results"])
	assert.Equal(t, model.TableCount{Inserted: 1}, first.Tables["events"])
	assert.Empty(t, first.Conflicts)

	second, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, model.TableCount{Updated: 2}, second.Tables["results"])
	assert.Equal(t, model.TableCount{Updated: 2}, second.Tables["countries"])
	ins, _ := second.Total()
	assert.Zero(t, ins)

	assert.EqualValues(t, 2, count(t, s, &model.Result{}))
	assert.EqualValues(t, 1, count(t, s, &model.Competition{}))
}

func TestApplyKeepsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)

	var before model.Sport
	require.NoError(t, s.DB().First(&before, "sport_id = ?", "football").Error)
	time.Sleep(10 * time.Millisecond)

	_, err = s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)
	var after model.Sport
	require.NoError(t, s.DB().First(&after, "sport_id = ?", "football").Error)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func TestApplyCorrectionUpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)

	corrected := samplePayload()
	corrected.Results[0].Rank = model.Ptr(2)
	corrected.Results[0].Medal = model.Ptr("silver")
	corrected.Results[1].Rank = model.Ptr(1)
	corrected.Results[1].Medal = model.Ptr("gold")
	report, err := s.Upserter().Apply(ctx, corrected)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tables["results"].Updated)

	var fra model.Result
	require.NoError(t, s.DB().First(&fra, "event_id = ? AND participant_id = ?", "ev_1", "FRA").Error)
	assert.Equal(t, 2, *fra.Rank)
	assert.Equal(t, "silver", *fra.Medal)
	assert.EqualValues(t, 2, count(t, s, &model.Result{}))
}

func TestApplyMissingParentRollsBack(t *testing.T) {
	s := newTestStore(t)
	p := &model.NormalizedPayload{
		Sports: []*model.Sport{{SportID: "tennis", SportName: "Tennis"}},
		Events: []*model.Event{{EventID: "ev_orphan", CompetitionID: "no_such_competition"}},
	}
	_, err := s.Upserter().Apply(context.Background(), p)
	require.ErrorIs(t, err, model.ErrForeignKeyViolation)

	assert.Zero(t, count(t, s, &model.Sport{}), "同一批次已写入的行必须回滚")
	assert.Zero(t, count(t, s, &model.Event{}))
}

func TestApplyResultReferencingUnknownParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)

	p := samplePayload()
	p.Results = append(p.Results, &model.Result{EventID: "ev_1", ParticipantID: "ARG", Rank: model.Ptr(3)})
	p.Results[0].Rank = model.Ptr(2)
	_, err = s.Upserter().Apply(ctx, p)
	require.ErrorIs(t, err, model.ErrForeignKeyViolation)

	var fra model.Result
	require.NoError(t, s.DB().First(&fra, "event_id = ? AND participant_id = ?", "ev_1", "FRA").Error)
	assert.Equal(t, 1, *fra.Rank, "失败的批次不应改动已有结果")
}

func TestApplySlugCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, &model.NormalizedPayload{Sports: []*model.Sport{{SportID: "ski-jumping", SportName: "Ski jumping"}}})
	require.NoError(t, err)

	_, err = s.Upserter().Apply(ctx, &model.NormalizedPayload{Sports: []*model.Sport{{SportID: "ski-jumping", SportName: "SKI  Jumping"}}})
	assert.NoError(t, err, "大小写与空白差异视为同名")

	_, err = s.Upserter().Apply(ctx, &model.NormalizedPayload{Sports: []*model.Sport{{SportID: "ski-jumping", SportName: "Ski-Jumping"}}})
	assert.ErrorIs(t, err, model.ErrSlugCollision)

	_, err = s.Upserter().Apply(ctx, &model.NormalizedPayload{Sports: []*model.Sport{
		{SportID: "luge", SportName: "Luge"},
		{SportID: "luge", SportName: "Lugé"},
	}})
	assert.ErrorIs(t, err, model.ErrSlugCollision)
}

func TestApplyDuplicateRowsInBatch(t *testing.T) {
	s := newTestStore(t)
	p := samplePayload()
	p.Results = append(p.Results, &model.Result{EventID: "ev_1", ParticipantID: "FRA", Rank: model.Ptr(1), Medal: model.Ptr("gold"), ScoreRaw: model.Ptr("3-3")})
	p.Participants = append(p.Participants, &model.Participant{ParticipantID: "BRA", ParticipantType: model.ParticipantTeam, DisplayName: "Brazil", CountryID: model.Ptr("BRA")})

	report, err := s.Upserter().Apply(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1, "内容相同的重复行不算冲突")
	assert.Equal(t, "results", report.Conflicts[0].Table)
	assert.Equal(t, "ev_1|FRA", report.Conflicts[0].RowKey)

	var fra model.Result
	require.NoError(t, s.DB().First(&fra, "event_id = ? AND participant_id = ?", "ev_1", "FRA").Error)
	assert.Equal(t, "3-3", *fra.ScoreRaw)
}

func TestApplyRejectsInvalidRank(t *testing.T) {
	s := newTestStore(t)
	p := samplePayload()
	p.Results[1].Rank = model.Ptr(0)
	_, err := s.Upserter().Apply(context.Background(), p)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Zero(t, count(t, s, &model.Country{}))
}

func TestDatabaseForeignKeysEnforced(t *testing.T) {
	s := newTestStore(t)
	err := s.DB().Exec("INSERT INTO disciplines (discipline_id, discipline_name, discipline_slug, sport_id) VALUES ('x', 'X', 'x', 'nope')").Error
	require.Error(t, err)
	assert.ErrorIs(t, classifyError("disciplines", err), model.ErrForeignKeyViolation)
}

func tableDDL(t *testing.T, s *Store, table string) string {
	t.Helper()
	var ddl string
	require.NoError(t, s.DB().Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl).Error)
	require.NotEmpty(t, ddl, table)
	return ddl
}

func TestForeignKeysPointFromChildToParent(t *testing.T) {
	s := newTestStore(t)

	assert.NotContains(t, tableDDL(t, s, "countries"), "REFERENCES", "维表不应引用子表")
	assert.NotContains(t, tableDDL(t, s, "sports"), "REFERENCES")
	assert.NotContains(t, tableDDL(t, s, "sources"), "REFERENCES")

	children := map[string][]string{
		"disciplines":       {"sports"},
		"sport_federations": {"sports"},
		"competitions":      {"sports", "sources"},
		"events":            {"competitions", "disciplines"},
		"participants":      {"countries"},
		"results":           {"events", "participants"},
		"raw_imports":       {"sources"},
	}
	for child, parents := range children {
		ddl := tableDDL(t, s, child)
		for _, parent := range parents {
			assert.Regexp(t, "REFERENCES [`\"]?"+parent+"[`\"]?", ddl, "%s 应引用 %s", child, parent)
		}
	}

	// 父表先于子表写入必须成功
	_, err := s.Upserter().UpsertSports(context.Background(), []*model.Sport{{SportID: "rowing", SportName: "Rowing"}})
	require.NoError(t, err)
	_, err = s.Upserter().UpsertDisciplines(context.Background(), []*model.Discipline{{DisciplineID: "sculls", DisciplineName: "Sculls", SportID: "rowing"}})
	require.NoError(t, err)
}

func TestApplyPrunesResultsMissingFromReingest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)

	// 重新抓取：BRA 出榜，ARG 入榜
	p := samplePayload()
	p.Countries = append(p.Countries, &model.Country{CountryID: "ARG", ISO2: model.Ptr("AR"), ISO3: "ARG", NameEN: "Argentina"})
	p.Participants = append(p.Participants, &model.Participant{ParticipantID: "ARG", ParticipantType: model.ParticipantTeam, DisplayName: "Argentina", CountryID: model.Ptr("ARG")})
	p.Results[1] = &model.Result{EventID: "ev_1", ParticipantID: "ARG", Rank: model.Ptr(2), Medal: model.Ptr("silver")}

	report, err := s.Upserter().Apply(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, model.TableCount{Inserted: 1, Updated: 1, Deleted: 1}, report.Tables["results"])

	var ids []string
	require.NoError(t, s.DB().Model(&model.Result{}).Where("event_id = ?", "ev_1").Order("participant_id").Pluck("participant_id", &ids).Error)
	assert.Equal(t, []string{"ARG", "FRA"}, ids)
	assert.EqualValues(t, 3, count(t, s, &model.Participant{}), "参赛方维表不随结果删除")
}

func TestApplyPruneLeavesOtherEventsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Upserter().Apply(ctx, samplePayload())
	require.NoError(t, err)

	other := &model.NormalizedPayload{
		Events:  []*model.Event{{EventID: "ev_2", CompetitionID: "comp_1", TopN: model.Ptr(1)}},
		Results: []*model.Result{{EventID: "ev_2", ParticipantID: "BRA", Rank: model.Ptr(1)}},
	}
	report, err := s.Upserter().Apply(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, report.Tables["results"].Deleted)
	assert.EqualValues(t, 3, count(t, s, &model.Result{}))
}

func TestSingleTableUpsert(t *testing.T) {
	s := newTestStore(t)
	c, err := s.Upserter().UpsertSports(context.Background(), []*model.Sport{{SportID: "rowing", SportName: "Rowing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Inserted)

	_, err = s.Upserter().UpsertDisciplines(context.Background(), []*model.Discipline{{DisciplineID: "sculls", DisciplineName: "Sculls", SportID: "canoe"}})
	assert.ErrorIs(t, err, model.ErrForeignKeyViolation)
}

func TestImportLogAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Imports()
	_, err := s.Upserter().UpsertSources(ctx, []*model.Source{{SourceID: "test_src", SourceName: "Test", SourceType: "csv"}})
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []*model.RawImport{
		{ImportID: "import_a", SourceID: model.Ptr("test_src"), FetchedAt: base, SeasonYear: 2024, Status: model.ImportSkipped, RunID: "r1"},
		{ImportID: "import_b", SourceID: model.Ptr("test_src"), FetchedAt: base.Add(time.Hour), SeasonYear: 2024, Status: model.ImportError, Error: model.Ptr("boom"), RunID: "r2"},
	}
	for _, r := range recs {
		require.NoError(t, repo.Append(ctx, r))
	}

	err = repo.Append(ctx, &model.RawImport{ImportID: "import_a", FetchedAt: base, SeasonYear: 2024, Status: model.ImportSuccess})
	assert.ErrorIs(t, err, model.ErrUniqueConstraintViolation)

	err = repo.Append(ctx, &model.RawImport{ImportID: "import_c", FetchedAt: base, SeasonYear: 2024, Status: "done"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	rows, err := repo.List(ctx, ImportFilter{SourceID: "test_src"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "import_b", rows[0].ImportID)

	counts, err := repo.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[model.ImportSkipped])
	assert.EqualValues(t, 1, counts[model.ImportError])
}
