package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SportsNations/internal/metrics"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxListedViolations 每个检查项最多列出的违规行，总数仍记录在 InvalidRows
const maxListedViolations = 100

// Violation 单条违规
type Violation struct {
	Check  string `json:"check"`
	Table  string `json:"table"`
	RowKey string `json:"row_key"`
	Reason string `json:"reason"`
}

// CheckResult 单个检查项的汇总
type CheckResult struct {
	Name        string `json:"check"`
	Table       string `json:"table"`
	InvalidRows int    `json:"invalid_rows"`
	OK          bool   `json:"ok"`
}

// ValidationReport 全库校验报告
type ValidationReport struct {
	Passed     bool          `json:"passed"`
	CheckedAt  time.Time     `json:"checked_at_utc"`
	Checks     []CheckResult `json:"checks"`
	Violations []Violation   `json:"violations"`
}

// Failed 未通过的检查项数
func (r *ValidationReport) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}

// Err 未通过时返回 ErrValidationFailure
func (r *ValidationReport) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%w: %d/%d 项检查未通过", model.ErrValidationFailure, r.Failed(), len(r.Checks))
}

// sqlCheck 以反连接/条件查询表达的检查
type sqlCheck struct {
	name   string
	table  string
	from   string
	where  string
	key    string
	reason string
}

// fkChecks 所有外键（可空外键只检查非空值）
var fkChecks = []sqlCheck{
	{
		name: "disciplines.sport_id exists", table: "disciplines",
		from:  "disciplines d LEFT JOIN sports s ON s.sport_id = d.sport_id",
		where: "s.sport_id IS NULL", key: "d.discipline_id", reason: "sport_id 不存在",
	},
	{
		name: "sport_federations.sport_id exists", table: "sport_federations",
		from:  "sport_federations f LEFT JOIN sports s ON s.sport_id = f.sport_id",
		where: "s.sport_id IS NULL", key: "f.sport_id || '|' || f.federation_qid", reason: "sport_id 不存在",
	},
	{
		name: "competitions.sport_id exists", table: "competitions",
		from:  "competitions c LEFT JOIN sports s ON s.sport_id = c.sport_id",
		where: "s.sport_id IS NULL", key: "c.competition_id", reason: "sport_id 不存在",
	},
	{
		name: "competitions.source_id exists or null", table: "competitions",
		from:  "competitions c LEFT JOIN sources s ON s.source_id = c.source_id",
		where: "c.source_id IS NOT NULL AND s.source_id IS NULL", key: "c.competition_id", reason: "source_id 不存在",
	},
	{
		name: "events.competition_id exists", table: "events",
		from:  "events e LEFT JOIN competitions c ON c.competition_id = e.competition_id",
		where: "c.competition_id IS NULL", key: "e.event_id", reason: "competition_id 不存在",
	},
	{
		name: "events.discipline_id exists or null", table: "events",
		from:  "events e LEFT JOIN disciplines d ON d.discipline_id = e.discipline_id",
		where: "e.discipline_id IS NOT NULL AND d.discipline_id IS NULL", key: "e.event_id", reason: "discipline_id 不存在",
	},
	{
		name: "participants.country_id exists or null", table: "participants",
		from:  "participants p LEFT JOIN countries c ON c.country_id = p.country_id",
		where: "p.country_id IS NOT NULL AND c.country_id IS NULL", key: "p.participant_id", reason: "country_id 不存在",
	},
	{
		name: "results.event_id exists", table: "results",
		from:  "results r LEFT JOIN events e ON e.event_id = r.event_id",
		where: "e.event_id IS NULL", key: "r.event_id || '|' || r.participant_id", reason: "event_id 不存在",
	},
	{
		name: "results.participant_id exists", table: "results",
		from:  "results r LEFT JOIN participants p ON p.participant_id = r.participant_id",
		where: "p.participant_id IS NULL", key: "r.event_id || '|' || r.participant_id", reason: "participant_id 不存在",
	},
	{
		name: "raw_imports.source_id exists or null", table: "raw_imports",
		from:  "raw_imports i LEFT JOIN sources s ON s.source_id = i.source_id",
		where: "i.source_id IS NOT NULL AND s.source_id IS NULL", key: "i.import_id", reason: "source_id 不存在",
	},
}

var sanityChecks = []sqlCheck{
	{
		name: "results.rank >= 1 or null", table: "results",
		from: "results r", where: "r.rank IS NOT NULL AND r.rank < 1",
		key: "r.event_id || '|' || r.participant_id", reason: "rank 必须为正整数",
	},
	{
		name: "ranked events have no null rank", table: "results",
		from:  "results r JOIN events e ON e.event_id = r.event_id",
		where: "e.top_n IS NOT NULL AND r.rank IS NULL", key: "r.event_id || '|' || r.participant_id",
		reason: "top-N 榜单的结果缺少 rank",
	},
	{
		name: "raw_imports.status allowed", table: "raw_imports",
		from: "raw_imports i", where: "i.status NOT IN ('success', 'skipped', 'error')",
		key: "i.import_id", reason: "status 非法",
	},
	{
		name: "raw_imports skipped without error", table: "raw_imports",
		from: "raw_imports i", where: "i.status = 'skipped' AND i.error IS NOT NULL",
		key: "i.import_id", reason: "skipped 行的 error 应为空",
	},
}

// Validator 只读的全库校验；所有检查都会执行，不在第一条违规处停止
type Validator struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

func NewValidator(db *gorm.DB, logger *logrus.Logger) *Validator {
	return &Validator{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Run 执行全部检查
func (v *Validator) Run(ctx context.Context) *ValidationReport {
	report := &ValidationReport{CheckedAt: v.now(), Violations: []Violation{}}
	db := v.db.WithContext(ctx)

	for _, chk := range fkChecks {
		report.add(v.runSQL(db, chk))
	}
	for _, chk := range sanityChecks {
		report.add(v.runSQL(db, chk))
	}
	report.add(v.topNCardinality(db))

	report.Passed = report.Failed() == 0
	byCheck := make(map[string]int, len(report.Checks))
	for _, c := range report.Checks {
		byCheck[c.Name] = c.InvalidRows
	}
	metrics.RecordValidation(report.Passed, byCheck)

	log := v.logger.WithFields(logrus.Fields{"checks": len(report.Checks), "failed": report.Failed()})
	if report.Passed {
		log.Info("校验通过")
	} else {
		log.Warn("校验未通过")
	}
	return report
}

func (r *ValidationReport) add(res CheckResult, violations []Violation) {
	r.Checks = append(r.Checks, res)
	r.Violations = append(r.Violations, violations...)
}

func queryFailure(name, table string, err error) (CheckResult, []Violation) {
	return CheckResult{Name: name, Table: table, InvalidRows: 1, OK: false},
		[]Violation{{Check: name, Table: table, Reason: fmt.Sprintf("查询失败: %v", err)}}
}

func (v *Validator) runSQL(db *gorm.DB, chk sqlCheck) (CheckResult, []Violation) {
	var n int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", chk.from, chk.where)
	if err := db.Raw(countSQL).Scan(&n).Error; err != nil {
		v.logger.WithError(err).WithField("check", chk.name).Error("校验查询失败")
		return queryFailure(chk.name, chk.table, err)
	}
	res := CheckResult{Name: chk.name, Table: chk.table, InvalidRows: int(n), OK: n == 0}
	if n == 0 {
		return res, nil
	}
	var keys []string
	keySQL := fmt.Sprintf("SELECT %s AS row_key FROM %s WHERE %s ORDER BY 1 LIMIT %d", chk.key, chk.from, chk.where, maxListedViolations)
	if err := db.Raw(keySQL).Scan(&keys).Error; err != nil {
		return queryFailure(chk.name, chk.table, err)
	}
	violations := make([]Violation, 0, len(keys))
	for _, k := range keys {
		violations = append(violations, Violation{Check: chk.name, Table: chk.table, RowKey: k, Reason: chk.reason})
	}
	return res, violations
}

type rankedEvent struct {
	EventID    string `gorm:"column:event_id"`
	TopN       int    `gorm:"column:top_n"`
	TieOverrun bool   `gorm:"column:tie_overrun"`
}

type eventRank struct {
	EventID string `gorm:"column:event_id"`
	Rank    *int   `gorm:"column:rank"`
}

// topNCardinality top-N 榜单的结果数必须等于 N；只有 connector 标记了 tie_overrun 的 event
// 才允许超出，且多出的行必须与第 N 名同名次（并列）
func (v *Validator) topNCardinality(db *gorm.DB) (CheckResult, []Violation) {
	const name = "top-N cardinality"
	var events []rankedEvent
	if err := db.Table("events").Select("event_id, top_n, tie_overrun").Where("top_n IS NOT NULL").Order("event_id").Scan(&events).Error; err != nil {
		return queryFailure(name, "events", err)
	}
	var ranks []eventRank
	err := db.Table("results r").
		Select("r.event_id, r.rank").
		Joins("JOIN events e ON e.event_id = r.event_id").
		Where("e.top_n IS NOT NULL").
		Scan(&ranks).Error
	if err != nil {
		return queryFailure(name, "events", err)
	}
	byEvent := make(map[string][]*int, len(events))
	for _, r := range ranks {
		byEvent[r.EventID] = append(byEvent[r.EventID], r.Rank)
	}

	res := CheckResult{Name: name, Table: "events", OK: true}
	var violations []Violation
	for _, e := range events {
		reason := cardinalityProblem(e.TopN, e.TieOverrun, byEvent[e.EventID])
		if reason == "" {
			continue
		}
		res.InvalidRows++
		res.OK = false
		if len(violations) < maxListedViolations {
			violations = append(violations, Violation{Check: name, Table: "events", RowKey: e.EventID, Reason: reason})
		}
	}
	return res, violations
}

// cardinalityProblem 返回违规原因，合规返回空串
func cardinalityProblem(topN int, tieOverrun bool, ranks []*int) string {
	count := len(ranks)
	switch {
	case topN < 1:
		return fmt.Sprintf("top_n=%d 非法", topN)
	case count == topN:
		return ""
	case count < topN:
		return fmt.Sprintf("结果数 %d 少于 top_n=%d", count, topN)
	case !tieOverrun:
		return fmt.Sprintf("结果数 %d 超过 top_n=%d，且该榜单未声明并列超出", count, topN)
	}
	known := make([]int, 0, len(ranks))
	for _, r := range ranks {
		if r == nil {
			return fmt.Sprintf("结果数 %d 超过 top_n=%d 且存在空 rank", count, topN)
		}
		known = append(known, *r)
	}
	sort.Ints(known)
	boundary := known[topN-1]
	for _, r := range known[topN:] {
		if r != boundary {
			return fmt.Sprintf("结果数 %d 超过 top_n=%d，超出部分 rank=%d 与边界名次 %d 不并列", count, topN, r, boundary)
		}
	}
	return ""
}
