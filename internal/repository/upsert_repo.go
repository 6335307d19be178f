package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"SportsNations/internal/model"
	"SportsNations/internal/utils/ident"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	batchSize = 200 // 单条 INSERT 的行数
	inChunk   = 500 // IN 查询的分片大小
)

// UpsertRepository upsert 引擎：按依赖顺序、单事务写入 NormalizedPayload
type UpsertRepository struct {
	db    *gorm.DB
	store *Store // 非 nil 时通过 Store.WriteTx 串行化
}

// NewUpsertRepository 绑定到给定连接（可以是事务）
func NewUpsertRepository(db *gorm.DB) *UpsertRepository {
	return &UpsertRepository{db: db}
}

// fkRef 外键引用：写入前确认父表中存在
type fkRef[T any] struct {
	column      string
	parentTable string
	parentKey   string
	value       func(*T) *string
}

// tableSpec 单表 upsert 规则
type tableSpec[T any] struct {
	table      string
	keyColumns []string
	updateCols []string // 冲突时覆盖的非主键列（created_at_utc 不在其中）
	key        func(*T) string
	refs       []fkRef[T]
	prepare    func(tx *gorm.DB, rows []*T) error
	existing   func(tx *gorm.DB, rows []*T) (map[string]bool, error)
}

func strRef(s string) *string { return &s }

var countrySpec = tableSpec[model.Country]{
	table:      "countries",
	keyColumns: []string{"country_id"},
	updateCols: []string{"iso2", "iso3", "name_en", "name_fr"},
	key:        func(c *model.Country) string { return c.CountryID },
	prepare: func(_ *gorm.DB, rows []*model.Country) error {
		for _, c := range rows {
			if c.ISO3 == "" {
				c.ISO3 = c.CountryID
			}
			if c.NameEN == "" {
				return fmt.Errorf("%w: 国家%s缺少英文名", model.ErrInvalidInput, c.CountryID)
			}
		}
		return nil
	},
}

var sportSpec = tableSpec[model.Sport]{
	table:      "sports",
	keyColumns: []string{"sport_id"},
	updateCols: []string{"sport_name", "sport_slug"},
	key:        func(s *model.Sport) string { return s.SportID },
	prepare: func(tx *gorm.DB, rows []*model.Sport) error {
		for _, s := range rows {
			if s.SportSlug == "" {
				s.SportSlug = s.SportID
			}
		}
		return checkNames(tx, "sports", "sport_id", "sport_name", rows,
			func(s *model.Sport) string { return s.SportID },
			func(s *model.Sport) string { return s.SportName })
	},
}

var disciplineSpec = tableSpec[model.Discipline]{
	table:      "disciplines",
	keyColumns: []string{"discipline_id"},
	updateCols: []string{"discipline_name", "discipline_slug", "sport_id", "confidence", "mapping_source"},
	key:        func(d *model.Discipline) string { return d.DisciplineID },
	refs: []fkRef[model.Discipline]{
		{column: "sport_id", parentTable: "sports", parentKey: "sport_id", value: func(d *model.Discipline) *string { return strRef(d.SportID) }},
	},
	prepare: func(tx *gorm.DB, rows []*model.Discipline) error {
		for _, d := range rows {
			if d.DisciplineSlug == "" {
				d.DisciplineSlug = d.DisciplineID
			}
		}
		return checkNames(tx, "disciplines", "discipline_id", "discipline_name", rows,
			func(d *model.Discipline) string { return d.DisciplineID },
			func(d *model.Discipline) string { return d.DisciplineName })
	},
}

var federationSpec = tableSpec[model.SportFederation]{
	table:      "sport_federations",
	keyColumns: []string{"sport_id", "federation_qid"},
	updateCols: []string{"federation_name"},
	key: func(f *model.SportFederation) string {
		return pairKey(f.SportID, f.FederationQID)
	},
	refs: []fkRef[model.SportFederation]{
		{column: "sport_id", parentTable: "sports", parentKey: "sport_id", value: func(f *model.SportFederation) *string { return strRef(f.SportID) }},
	},
}

var sourceSpec = tableSpec[model.Source]{
	table:      "sources",
	keyColumns: []string{"source_id"},
	updateCols: []string{"source_name", "source_type", "license_notes", "base_url"},
	key:        func(s *model.Source) string { return s.SourceID },
}

var competitionSpec = tableSpec[model.Competition]{
	table:      "competitions",
	keyColumns: []string{"competition_id"},
	updateCols: []string{"sport_id", "name", "season_year", "level", "start_date", "end_date", "source_id"},
	key:        func(c *model.Competition) string { return c.CompetitionID },
	refs: []fkRef[model.Competition]{
		{column: "sport_id", parentTable: "sports", parentKey: "sport_id", value: func(c *model.Competition) *string { return strRef(c.SportID) }},
		{column: "source_id", parentTable: "sources", parentKey: "source_id", value: func(c *model.Competition) *string { return c.SourceID }},
	},
}

var eventSpec = tableSpec[model.Event]{
	table:      "events",
	keyColumns: []string{"event_id"},
	updateCols: []string{"competition_id", "discipline_id", "gender", "event_class", "event_date", "top_n", "tie_overrun"},
	key:        func(e *model.Event) string { return e.EventID },
	refs: []fkRef[model.Event]{
		{column: "competition_id", parentTable: "competitions", parentKey: "competition_id", value: func(e *model.Event) *string { return strRef(e.CompetitionID) }},
		{column: "discipline_id", parentTable: "disciplines", parentKey: "discipline_id", value: func(e *model.Event) *string { return e.DisciplineID }},
	},
}

var participantSpec = tableSpec[model.Participant]{
	table:      "participants",
	keyColumns: []string{"participant_id"},
	updateCols: []string{"participant_type", "display_name", "country_id"},
	key:        func(p *model.Participant) string { return p.ParticipantID },
	refs: []fkRef[model.Participant]{
		{column: "country_id", parentTable: "countries", parentKey: "country_id", value: func(p *model.Participant) *string { return p.CountryID }},
	},
}

var resultSpec = tableSpec[model.Result]{
	table:      "results",
	keyColumns: []string{"event_id", "participant_id"},
	updateCols: []string{"rank", "medal", "score_raw", "points_awarded"},
	key: func(r *model.Result) string {
		return pairKey(r.EventID, r.ParticipantID)
	},
	refs: []fkRef[model.Result]{
		{column: "event_id", parentTable: "events", parentKey: "event_id", value: func(r *model.Result) *string { return strRef(r.EventID) }},
		{column: "participant_id", parentTable: "participants", parentKey: "participant_id", value: func(r *model.Result) *string { return strRef(r.ParticipantID) }},
	},
	prepare: func(_ *gorm.DB, rows []*model.Result) error {
		for _, r := range rows {
			if r.Rank != nil && *r.Rank < 1 {
				return fmt.Errorf("%w: 结果(%s, %s)名次%d非法", model.ErrInvalidInput, r.EventID, r.ParticipantID, *r.Rank)
			}
		}
		return nil
	},
}

func init() {
	countrySpec.existing = existingByColumn(countrySpec)
	sportSpec.existing = existingByColumn(sportSpec)
	disciplineSpec.existing = existingByColumn(disciplineSpec)
	federationSpec.existing = existingByPair(federationSpec, func(f *model.SportFederation) string { return f.SportID })
	sourceSpec.existing = existingByColumn(sourceSpec)
	competitionSpec.existing = existingByColumn(competitionSpec)
	eventSpec.existing = existingByColumn(eventSpec)
	participantSpec.existing = existingByColumn(participantSpec)
	resultSpec.existing = existingByPair(resultSpec, func(r *model.Result) string { return r.EventID })
}

// pairKey 复合主键；任一部分为空时返回空串
func pairKey(a, b string) string {
	if a == "" || b == "" {
		return ""
	}
	return a + "|" + b
}

// Apply 单事务内按固定顺序写入：Country → Sport → Discipline → SportFederation → Source →
// Competition → Event → Participant → Result；任一步失败整体回滚
func (r *UpsertRepository) Apply(ctx context.Context, p *model.NormalizedPayload) (*model.UpsertReport, error) {
	report := model.NewUpsertReport()
	if p.Empty() {
		return report, nil
	}
	record := func(table string, count model.TableCount, conflicts []model.RowConflict, err error) error {
		if err != nil {
			return err
		}
		if count.Inserted+count.Updated > 0 {
			report.Add(table, count.Inserted, count.Updated)
		}
		report.Conflicts = append(report.Conflicts, conflicts...)
		return nil
	}
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		if err := record(applyTable(tx, countrySpec, p.Countries)); err != nil {
			return err
		}
		if err := record(applyTable(tx, sportSpec, p.Sports)); err != nil {
			return err
		}
		if err := record(applyTable(tx, disciplineSpec, p.Disciplines)); err != nil {
			return err
		}
		if err := record(applyTable(tx, federationSpec, p.Federations)); err != nil {
			return err
		}
		if err := record(applyTable(tx, sourceSpec, p.Sources)); err != nil {
			return err
		}
		if err := record(applyTable(tx, competitionSpec, p.Competitions)); err != nil {
			return err
		}
		if err := record(applyTable(tx, eventSpec, p.Events)); err != nil {
			return err
		}
		if err := record(applyTable(tx, participantSpec, p.Participants)); err != nil {
			return err
		}
		if err := record(applyTable(tx, resultSpec, p.Results)); err != nil {
			return err
		}
		deleted, err := pruneStaleResults(tx, p)
		if err != nil {
			return err
		}
		if deleted > 0 {
			report.AddDeleted(resultSpec.table, deleted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// pruneStaleResults 对 payload 中的每个 event，删除本次未出现的参赛方结果行；
// 重新抓取后榜单成员变化时旧行不得残留。payload 之外的 event 不动
func pruneStaleResults(tx *gorm.DB, p *model.NormalizedPayload) (int, error) {
	keep := make(map[string][]string, len(p.Events))
	for _, ev := range p.Events {
		if _, ok := keep[ev.EventID]; !ok {
			keep[ev.EventID] = nil
		}
	}
	for _, res := range p.Results {
		if ids, ok := keep[res.EventID]; ok {
			keep[res.EventID] = append(ids, res.ParticipantID)
		}
	}
	eventIDs := make([]string, 0, len(keep))
	for id := range keep {
		eventIDs = append(eventIDs, id)
	}
	sort.Strings(eventIDs)

	deleted := 0
	for _, eventID := range eventIDs {
		q := tx.Where("event_id = ?", eventID)
		if ids := keep[eventID]; len(ids) > 0 {
			q = q.Where("participant_id NOT IN ?", ids)
		}
		res := q.Delete(&model.Result{})
		if res.Error != nil {
			return deleted, fmt.Errorf("清理 %s 的过期结果: %w", eventID, res.Error)
		}
		deleted += int(res.RowsAffected)
	}
	return deleted, nil
}

func applyTable[T any](tx *gorm.DB, spec tableSpec[T], rows []*T) (string, model.TableCount, []model.RowConflict, error) {
	count, conflicts, err := upsertTable(tx, spec, rows)
	return spec.table, count, conflicts, err
}

// inTx 绑定 Store 时走串行写事务，否则在当前连接上开（嵌套）事务
func (r *UpsertRepository) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.store != nil {
		return r.store.WriteTx(ctx, fn)
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// UpsertCountries 单表 upsert（国家）
func (r *UpsertRepository) UpsertCountries(ctx context.Context, rows []*model.Country) (model.TableCount, error) {
	return upsertOne(ctx, r, countrySpec, rows)
}

// UpsertSports 单表 upsert（运动）
func (r *UpsertRepository) UpsertSports(ctx context.Context, rows []*model.Sport) (model.TableCount, error) {
	return upsertOne(ctx, r, sportSpec, rows)
}

// UpsertDisciplines 单表 upsert（项目）
func (r *UpsertRepository) UpsertDisciplines(ctx context.Context, rows []*model.Discipline) (model.TableCount, error) {
	return upsertOne(ctx, r, disciplineSpec, rows)
}

// UpsertFederations 单表 upsert（单项联合会）
func (r *UpsertRepository) UpsertFederations(ctx context.Context, rows []*model.SportFederation) (model.TableCount, error) {
	return upsertOne(ctx, r, federationSpec, rows)
}

// UpsertSources 单表 upsert（数据源）
func (r *UpsertRepository) UpsertSources(ctx context.Context, rows []*model.Source) (model.TableCount, error) {
	return upsertOne(ctx, r, sourceSpec, rows)
}

// UpsertCompetitions 单表 upsert（赛事）
func (r *UpsertRepository) UpsertCompetitions(ctx context.Context, rows []*model.Competition) (model.TableCount, error) {
	return upsertOne(ctx, r, competitionSpec, rows)
}

// UpsertEvents 单表 upsert（项目/榜单）
func (r *UpsertRepository) UpsertEvents(ctx context.Context, rows []*model.Event) (model.TableCount, error) {
	return upsertOne(ctx, r, eventSpec, rows)
}

// UpsertParticipants 单表 upsert（参赛方）
func (r *UpsertRepository) UpsertParticipants(ctx context.Context, rows []*model.Participant) (model.TableCount, error) {
	return upsertOne(ctx, r, participantSpec, rows)
}

// UpsertResults 单表 upsert（结果）
func (r *UpsertRepository) UpsertResults(ctx context.Context, rows []*model.Result) (model.TableCount, error) {
	return upsertOne(ctx, r, resultSpec, rows)
}

func upsertOne[T any](ctx context.Context, r *UpsertRepository, spec tableSpec[T], rows []*T) (model.TableCount, error) {
	var count model.TableCount
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		c, _, err := upsertTable(tx, spec, rows)
		count = c
		return err
	})
	return count, err
}

// upsertTable 去重 → 外键校验 → 统计已存在行 → INSERT ... ON CONFLICT DO UPDATE
func upsertTable[T any](tx *gorm.DB, spec tableSpec[T], rows []*T) (model.TableCount, []model.RowConflict, error) {
	var count model.TableCount
	rows = compact(rows)
	if len(rows) == 0 {
		return count, nil, nil
	}
	for _, row := range rows {
		if spec.key(row) == "" {
			return count, nil, fmt.Errorf("%w: %s 存在主键为空的行", model.ErrInvalidInput, spec.table)
		}
	}
	if spec.prepare != nil {
		if err := spec.prepare(tx, rows); err != nil {
			return count, nil, classifyError(spec.table, err)
		}
	}

	rows, conflicts := dedupe(spec.table, rows, spec.key)

	for _, ref := range spec.refs {
		if err := guardForeignKey(tx, spec.table, ref, rows); err != nil {
			return count, conflicts, err
		}
	}

	existing, err := spec.existing(tx, rows)
	if err != nil {
		return count, conflicts, classifyError(spec.table, err)
	}
	for _, row := range rows {
		if existing[spec.key(row)] {
			count.Updated++
		} else {
			count.Inserted++
		}
	}

	columns := make([]clause.Column, 0, len(spec.keyColumns))
	for _, c := range spec.keyColumns {
		columns = append(columns, clause.Column{Name: c})
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.AssignmentColumns(spec.updateCols),
	}).CreateInBatches(rows, batchSize).Error; err != nil {
		return model.TableCount{}, conflicts, classifyError(spec.table, err)
	}
	return count, conflicts, nil
}

func compact[T any](rows []*T) []*T {
	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// dedupe 同一批次内主键重复时保留最后一行，内容不同则记为行级冲突
func dedupe[T any](table string, rows []*T, key func(*T) string) ([]*T, []model.RowConflict) {
	index := make(map[string]int, len(rows))
	out := make([]*T, 0, len(rows))
	var conflicts []model.RowConflict
	for _, row := range rows {
		k := key(row)
		if i, ok := index[k]; ok {
			if !reflect.DeepEqual(out[i], row) {
				conflicts = append(conflicts, model.RowConflict{Table: table, RowKey: k, Reason: "批次内主键重复且内容不同，保留最后一行"})
			}
			out[i] = row
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out, conflicts
}

func guardForeignKey[T any](tx *gorm.DB, table string, ref fkRef[T], rows []*T) error {
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for _, row := range rows {
		v := ref.value(row)
		if v == nil || seen[*v] {
			continue
		}
		seen[*v] = true
		keys = append(keys, *v)
	}
	if len(keys) == 0 {
		return nil
	}
	found, err := existingKeys(tx, ref.parentTable, ref.parentKey, keys)
	if err != nil {
		return classifyError(table, err)
	}
	var missing []string
	for _, k := range keys {
		if !found[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	total := len(missing)
	if total > 5 {
		missing = append(missing[:5], fmt.Sprintf("...共%d个", total))
	}
	return fmt.Errorf("%w: %s.%s 引用的 %s.%s 不存在: %s", model.ErrForeignKeyViolation,
		table, ref.column, ref.parentTable, ref.parentKey, strings.Join(missing, ", "))
}

func chunks(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

func existingKeys(tx *gorm.DB, table, column string, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	for _, chunk := range chunks(keys, inChunk) {
		var got []string
		if err := tx.Table(table).Where(column+" IN ?", chunk).Pluck(column, &got).Error; err != nil {
			return nil, err
		}
		for _, k := range got {
			found[k] = true
		}
	}
	return found, nil
}

func existingByColumn[T any](spec tableSpec[T]) func(*gorm.DB, []*T) (map[string]bool, error) {
	return func(tx *gorm.DB, rows []*T) (map[string]bool, error) {
		keys := make([]string, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, spec.key(row))
		}
		return existingKeys(tx, spec.table, spec.keyColumns[0], keys)
	}
}

type keyPair struct {
	A string `gorm:"column:a"`
	B string `gorm:"column:b"`
}

// existingByPair 复合主键：按第一列分片查询后在内存中拼接
func existingByPair[T any](spec tableSpec[T], first func(*T) string) func(*gorm.DB, []*T) (map[string]bool, error) {
	return func(tx *gorm.DB, rows []*T) (map[string]bool, error) {
		seen := make(map[string]bool)
		firsts := make([]string, 0)
		for _, row := range rows {
			if f := first(row); !seen[f] {
				seen[f] = true
				firsts = append(firsts, f)
			}
		}
		colA, colB := spec.keyColumns[0], spec.keyColumns[1]
		found := make(map[string]bool)
		for _, chunk := range chunks(firsts, inChunk) {
			var pairs []keyPair
			if err := tx.Table(spec.table).Select(colA+" AS a, "+colB+" AS b").Where(colA+" IN ?", chunk).Scan(&pairs).Error; err != nil {
				return nil, err
			}
			for _, p := range pairs {
				found[pairKey(p.A, p.B)] = true
			}
		}
		return found, nil
	}
}

type idName struct {
	ID   string `gorm:"column:id"`
	Name string `gorm:"column:name"`
}

// checkNames 同一 slug 对应不同名称（批次内或与库中已有行）视为冲突，不自动处理
func checkNames[T any](tx *gorm.DB, table, idCol, nameCol string, rows []*T, id, name func(*T) string) error {
	names := make(map[string]string, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		k, n := id(row), name(row)
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: %s.%s 名称为空", model.ErrInvalidInput, table, k)
		}
		if prev, ok := names[k]; ok {
			if !ident.SameName(prev, n) {
				return fmt.Errorf("%w: %s 中 %q 与 %q 的 slug 均为 %q", model.ErrSlugCollision, table, prev, n, k)
			}
			continue
		}
		names[k] = n
		ids = append(ids, k)
	}
	for _, chunk := range chunks(ids, inChunk) {
		var stored []idName
		if err := tx.Table(table).Select(idCol+" AS id, "+nameCol+" AS name").Where(idCol+" IN ?", chunk).Scan(&stored).Error; err != nil {
			return err
		}
		for _, s := range stored {
			if !ident.SameName(s.Name, names[s.ID]) {
				return fmt.Errorf("%w: %s 已有 %q，新名称 %q 的 slug 同为 %q", model.ErrSlugCollision, table, s.Name, names[s.ID], s.ID)
			}
		}
	}
	return nil
}
