// Package publication 榜单/赛事发布的按年去重与 top-N 截断，所有排名类 connector 共用。
package publication

import (
	"fmt"
	"sort"
	"time"

	"SportsNations/internal/model"
)

// Entry 发布中的一条排名
type Entry[T any] struct {
	Rank int // 数据源给出的名次，>= 1
	Item T
}

// Publication 一次带日期的发布
type Publication[T any] struct {
	EffectiveDate time.Time
	EditionYear   int    // 赛事届次年份，非 0 时优先于 EffectiveDate 的年份
	Label         string // 仅用于错误信息
	Entries       []Entry[T]
}

// Year 发布归属的目标年份
func (p Publication[T]) Year() int {
	if p.EditionYear != 0 {
		return p.EditionYear
	}
	return p.EffectiveDate.Year()
}

// Policy connector 声明的截断策略
type Policy struct {
	TopN      int  // 10 常规排名，4 决赛排名，2~3 领奖台
	AllowTies bool // 允许最后一个保留名次并列时超出 N
	FromYear  int  // 0 表示不限
	UntilYear int  // 0 表示不限
}

// Selection 某年最终保留的一次发布
type Selection[T any] struct {
	Year          int
	EffectiveDate time.Time
	Entries       []Entry[T]
	Overrun       bool // 因并列超出 TopN
}

// Select 按年分组，每年保留生效日期最新的一次发布，排序并截断到 TopN
func Select[T any](pubs []Publication[T], policy Policy) ([]Selection[T], error) {
	if policy.TopN <= 0 {
		return nil, fmt.Errorf("%w: TopN 必须为正数（当前%d）", model.ErrInvalidInput, policy.TopN)
	}

	latest := make(map[int]int)    // year -> pubs 下标
	ambiguous := make(map[int]int) // year -> 与最新日期相同的另一份下标
	for i, p := range pubs {
		year := p.Year()
		if policy.FromYear != 0 && year < policy.FromYear {
			continue
		}
		if policy.UntilYear != 0 && year > policy.UntilYear {
			continue
		}
		cur, ok := latest[year]
		switch {
		case !ok:
			latest[year] = i
		case p.EffectiveDate.After(pubs[cur].EffectiveDate):
			latest[year] = i
			delete(ambiguous, year)
		case p.EffectiveDate.Equal(pubs[cur].EffectiveDate):
			ambiguous[year] = i
		}
	}
	for year, other := range ambiguous {
		cur := pubs[latest[year]]
		return nil, fmt.Errorf("%w: %d 年存在多份同日(%s)发布: %q 与 %q", model.ErrAmbiguousPublication,
			year, cur.EffectiveDate.Format("2006-01-02"), cur.Label, pubs[other].Label)
	}

	years := make([]int, 0, len(latest))
	for y := range latest {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]Selection[T], 0, len(years))
	for _, year := range years {
		p := pubs[latest[year]]
		entries, overrun, err := truncate(p.Entries, policy)
		if err != nil {
			return nil, fmt.Errorf("%d 年发布%q: %w", year, p.Label, err)
		}
		if len(entries) == 0 {
			continue
		}
		out = append(out, Selection[T]{Year: year, EffectiveDate: p.EffectiveDate, Entries: entries, Overrun: overrun})
	}
	return out, nil
}

// truncate 按名次升序稳定排序后截断；只有 AllowTies 时才保留与第 N 名并列的条目
func truncate[T any](entries []Entry[T], policy Policy) ([]Entry[T], bool, error) {
	sorted := make([]Entry[T], len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if e.Rank < 1 {
			return nil, false, fmt.Errorf("%w: 名次必须 >= 1（当前%d）", model.ErrParse, e.Rank)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if len(sorted) <= policy.TopN {
		return sorted, false, nil
	}
	keep := policy.TopN
	if policy.AllowTies {
		boundary := sorted[keep-1].Rank
		for keep < len(sorted) && sorted[keep].Rank == boundary {
			keep++
		}
	}
	return sorted[:keep], keep > policy.TopN, nil
}
