package model

import (
	"time"

	"gorm.io/datatypes"
)

// ParticipantType 参赛方类型
type ParticipantType string

const (
	ParticipantAthlete ParticipantType = "athlete"
	ParticipantTeam    ParticipantType = "team"
	ParticipantPair    ParticipantType = "pair"
)

// Country 国家维度（主键为 ISO3 或显式映射的历史代码）
type Country struct {
	CountryID string  `gorm:"column:country_id;primaryKey;type:varchar(8)"`
	ISO2      *string `gorm:"column:iso2;type:varchar(2)"`
	ISO3      string  `gorm:"column:iso3;type:varchar(8);not null"`
	NameEN    string  `gorm:"column:name_en;type:varchar(128);not null"`
	NameFR    *string `gorm:"column:name_fr;type:varchar(128)"`
}

// Sport 运动维度，主键为名称 slug
type Sport struct {
	SportID   string    `gorm:"column:sport_id;primaryKey;type:varchar(128)"`
	SportName string    `gorm:"column:sport_name;type:varchar(128);not null"`
	SportSlug string    `gorm:"column:sport_slug;type:varchar(128);uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at_utc;autoCreateTime"`
}

// Discipline 项目维度，归属某个 Sport
type Discipline struct {
	DisciplineID   string    `gorm:"column:discipline_id;primaryKey;type:varchar(128)"`
	DisciplineName string    `gorm:"column:discipline_name;type:varchar(128);not null"`
	DisciplineSlug string    `gorm:"column:discipline_slug;type:varchar(128);uniqueIndex;not null"`
	SportID        string    `gorm:"column:sport_id;type:varchar(128);index;not null"`
	Sport          *Sport    `gorm:"belongsTo;foreignKey:SportID;references:SportID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Confidence     *float64  `gorm:"column:confidence"`                          // 映射置信度 0~1
	MappingSource  *string   `gorm:"column:mapping_source;type:varchar(64)"`     // seed/override/heuristic/connector_xxx
	CreatedAt      time.Time `gorm:"column:created_at_utc;autoCreateTime"`
}

// SportFederation 运动与其国际单项联合会（Wikidata QID）
type SportFederation struct {
	SportID        string  `gorm:"column:sport_id;primaryKey;type:varchar(128)"`
	Sport          *Sport  `gorm:"belongsTo;foreignKey:SportID;references:SportID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	FederationQID  string  `gorm:"column:federation_qid;primaryKey;type:varchar(32)"`
	FederationName *string `gorm:"column:federation_name;type:varchar(256)"`
}

// Source 外部数据源
type Source struct {
	SourceID     string  `gorm:"column:source_id;primaryKey;type:varchar(64)"`
	SourceName   string  `gorm:"column:source_name;type:varchar(128);not null"`
	SourceType   string  `gorm:"column:source_type;type:varchar(32);not null"` // api/sparql/csv
	LicenseNotes *string `gorm:"column:license_notes;type:text"`
	BaseURL      *string `gorm:"column:base_url;type:varchar(512)"`
}

// Competition 赛事（某个赛季/届次）
type Competition struct {
	CompetitionID string  `gorm:"column:competition_id;primaryKey;type:varchar(128)"`
	SportID       string  `gorm:"column:sport_id;type:varchar(128);index;not null"`
	Sport         *Sport  `gorm:"belongsTo;foreignKey:SportID;references:SportID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Name          string  `gorm:"column:name;type:varchar(256);not null"`
	SeasonYear    *int    `gorm:"column:season_year"`
	Level         *string `gorm:"column:level;type:varchar(32)"` // world/continental/national
	StartDate     *string `gorm:"column:start_date;type:varchar(10)"`
	EndDate       *string `gorm:"column:end_date;type:varchar(10)"`
	SourceID      *string `gorm:"column:source_id;type:varchar(64);index"`
	Source        *Source `gorm:"belongsTo;foreignKey:SourceID;references:SourceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Event 赛事下的单个项目/榜单
type Event struct {
	EventID       string       `gorm:"column:event_id;primaryKey;type:varchar(128)"`
	CompetitionID string       `gorm:"column:competition_id;type:varchar(128);index;not null"`
	Competition   *Competition `gorm:"belongsTo;foreignKey:CompetitionID;references:CompetitionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	DisciplineID  *string      `gorm:"column:discipline_id;type:varchar(128);index"`
	Discipline    *Discipline  `gorm:"belongsTo;foreignKey:DisciplineID;references:DisciplineID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Gender        *string      `gorm:"column:gender;type:varchar(16)"`
	EventClass    *string      `gorm:"column:event_class;type:varchar(64)"`
	EventDate     *string      `gorm:"column:event_date;type:varchar(10)"`
	TopN          *int         `gorm:"column:top_n"` // 非空表示 top-N 榜单，结果行数受其约束
	TieOverrun    bool         `gorm:"column:tie_overrun;not null;default:false"` // connector 声明末位并列导致行数超出 TopN
}

// Participant 参赛方（国家队、运动员、组合）
type Participant struct {
	ParticipantID   string          `gorm:"column:participant_id;primaryKey;type:varchar(128)"`
	ParticipantType ParticipantType `gorm:"column:participant_type;type:varchar(16);not null"`
	DisplayName     string          `gorm:"column:display_name;type:varchar(256);not null"`
	CountryID       *string         `gorm:"column:country_id;type:varchar(8);index"`
	Country         *Country        `gorm:"belongsTo;foreignKey:CountryID;references:CountryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Result 结果行，(event_id, participant_id) 唯一
type Result struct {
	EventID       string       `gorm:"column:event_id;primaryKey;type:varchar(128)"`
	ParticipantID string       `gorm:"column:participant_id;primaryKey;type:varchar(128)"`
	Event         *Event       `gorm:"belongsTo;foreignKey:EventID;references:EventID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Participant   *Participant `gorm:"belongsTo;foreignKey:ParticipantID;references:ParticipantID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Rank          *int         `gorm:"column:rank"`
	Medal         *string      `gorm:"column:medal;type:varchar(8)"` // gold/silver/bronze
	ScoreRaw      *string      `gorm:"column:score_raw;type:varchar(128)"`
	PointsAwarded *float64     `gorm:"column:points_awarded"`
}

// RawImport 原始抓取日志，只追加不修改
type RawImport struct {
	ImportID    string         `gorm:"column:import_id;primaryKey;type:varchar(128)"`
	SourceID    *string        `gorm:"column:source_id;type:varchar(64);index"`
	Source      *Source        `gorm:"belongsTo;foreignKey:SourceID;references:SourceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	FetchedAt   time.Time      `gorm:"column:fetched_at_utc;not null;index"`
	SeasonYear  int            `gorm:"column:season_year;not null"`
	RawPath     string         `gorm:"column:raw_path;type:varchar(1024)"`
	Status      ImportStatus   `gorm:"column:status;type:varchar(16);not null"`
	Error       *string        `gorm:"column:error;type:text"`
	FetchOrigin *FetchOrigin   `gorm:"column:fetch_origin;type:varchar(16)"` // remote/local_seed，仅 success 有值
	RunID       string         `gorm:"column:run_id;type:varchar(64);index"`
	Meta        datatypes.JSON `gorm:"column:meta"`
}

func (Country) TableName() string         { return "countries" }
func (Sport) TableName() string           { return "sports" }
func (Discipline) TableName() string      { return "disciplines" }
func (SportFederation) TableName() string { return "sport_federations" }
func (Source) TableName() string          { return "sources" }
func (Competition) TableName() string     { return "competitions" }
func (Event) TableName() string           { return "events" }
func (Participant) TableName() string     { return "participants" }
func (Result) TableName() string          { return "results" }
func (RawImport) TableName() string       { return "raw_imports" }

// AllTables 按依赖顺序列出全部表模型（迁移用）
func AllTables() []interface{} {
	return []interface{}{
		&Country{},
		&Sport{},
		&Discipline{},
		&SportFederation{},
		&Source{},
		&Competition{},
		&Event{},
		&Participant{},
		&Result{},
		&RawImport{},
	}
}
