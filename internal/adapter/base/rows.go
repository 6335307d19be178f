package base

import (
	"fmt"
	"strconv"

	"SportsNations/internal/model"
	"SportsNations/internal/utils/countrycode"
	"SportsNations/internal/utils/ident"
)

// SportRow 以名称 slug 为主键的运动行
func SportRow(name string) (*model.Sport, error) {
	slug, err := ident.Slug(name)
	if err != nil {
		return nil, err
	}
	return &model.Sport{SportID: slug, SportName: name, SportSlug: slug}, nil
}

// DisciplineRow connector 自带的项目行，mapping_source 记为 connector_<id>
func DisciplineRow(name, sportID, connectorID string, confidence float64) (*model.Discipline, error) {
	slug, err := ident.Slug(name)
	if err != nil {
		return nil, err
	}
	return &model.Discipline{
		DisciplineID:   slug,
		DisciplineName: name,
		DisciplineSlug: slug,
		SportID:        sportID,
		Confidence:     model.Ptr(confidence),
		MappingSource:  model.Ptr("connector_" + connectorID),
	}, nil
}

// NationalTeam 国家队参赛方：participant_id 即国家代码
func NationalTeam(country *model.Country) *model.Participant {
	return &model.Participant{
		ParticipantID:   country.CountryID,
		ParticipantType: model.ParticipantTeam,
		DisplayName:     country.NameEN,
		CountryID:       model.Ptr(country.CountryID),
	}
}

// MedalForRank 1~3 名对应金银铜，其余为空
func MedalForRank(rank int) *string {
	switch rank {
	case 1:
		return model.Ptr("gold")
	case 2:
		return model.Ptr("silver")
	case 3:
		return model.Ptr("bronze")
	}
	return nil
}

// Date YYYY-MM-DD 格式的日期列
func Date(year, month, day int) *string {
	return model.Ptr(fmt.Sprintf("%04d-%02d-%02d", year, month, day))
}

// Atoi 去空白后的整数；失败包装为 ErrParse
func Atoi(field, value string) (int, error) {
	n, err := strconv.Atoi(trimNumber(value))
	if err != nil {
		return 0, ParseErr("%s=%q 不是整数", field, value)
	}
	return n, nil
}

// ParseFloat 去空白后的浮点数；失败包装为 ErrParse
func ParseFloat(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(trimNumber(value), 64)
	if err != nil {
		return 0, ParseErr("%s=%q 不是数字", field, value)
	}
	return f, nil
}

func trimNumber(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != ' ' && c != '\t' && c != ',' {
			out = append(out, c)
		}
	}
	return string(out)
}

// Payload 累积 parse 输出并按主键去重，同一行只保留首次出现
type Payload struct {
	p            model.NormalizedPayload
	countries    map[string]bool
	participants map[string]bool
	sports       map[string]bool
	disciplines  map[string]bool
	competitions map[string]bool
	events       map[string]bool
}

func NewPayload(source *model.Source) *Payload {
	b := &Payload{
		countries:    map[string]bool{},
		participants: map[string]bool{},
		sports:       map[string]bool{},
		disciplines:  map[string]bool{},
		competitions: map[string]bool{},
		events:       map[string]bool{},
	}
	if source != nil {
		b.p.Sources = append(b.p.Sources, source)
	}
	return b
}

func (b *Payload) Sport(s *model.Sport) {
	if !b.sports[s.SportID] {
		b.sports[s.SportID] = true
		b.p.Sports = append(b.p.Sports, s)
	}
}

func (b *Payload) Discipline(d *model.Discipline) {
	if !b.disciplines[d.DisciplineID] {
		b.disciplines[d.DisciplineID] = true
		b.p.Disciplines = append(b.p.Disciplines, d)
	}
}

func (b *Payload) Competition(c *model.Competition) {
	if !b.competitions[c.CompetitionID] {
		b.competitions[c.CompetitionID] = true
		b.p.Competitions = append(b.p.Competitions, c)
	}
}

func (b *Payload) Event(e *model.Event) {
	if !b.events[e.EventID] {
		b.events[e.EventID] = true
		b.p.Events = append(b.p.Events, e)
	}
}

// Country 同时登记国家行，返回规范化后的行
func (b *Payload) Country(code, fallbackName string) *model.Country {
	row := countrycode.Row(code, fallbackName)
	if !b.countries[row.CountryID] {
		b.countries[row.CountryID] = true
		b.p.Countries = append(b.p.Countries, row)
	}
	return row
}

func (b *Payload) Participant(p *model.Participant) {
	if !b.participants[p.ParticipantID] {
		b.participants[p.ParticipantID] = true
		b.p.Participants = append(b.p.Participants, p)
	}
}

// Result 结果行不去重，重复由 upsert 引擎记录为冲突
func (b *Payload) Result(r *model.Result) {
	b.p.Results = append(b.p.Results, r)
}

func (b *Payload) Federation(f *model.SportFederation) {
	b.p.Federations = append(b.p.Federations, f)
}

// Build 返回累积的 payload
func (b *Payload) Build() *model.NormalizedPayload {
	out := b.p
	return &out
}

// ResolveCountry 国家代码解析顺序：别名/ISO 代码 → 显式名称映射 → 英文名精确匹配 → 三字母代码原样
func ResolveCountry(code, name string, names map[string]string) (string, bool) {
	if c := countrycode.Normalize(code); c != "" {
		if _, ok := countrycode.Lookup(c); ok {
			return c, true
		}
	}
	if c, ok := names[name]; ok {
		return c, true
	}
	if c, ok := countrycode.ByEnglishName(name); ok {
		return c, true
	}
	if c, err := ident.CountryID(countrycode.Normalize(code)); err == nil {
		return c, true
	}
	return "", false
}

// DeclaredTopN 事件上记录的 N：数据源给出的条目不足 N 时按实际条目数
func DeclaredTopN(n, kept int) int {
	if kept < n {
		return kept
	}
	return n
}
