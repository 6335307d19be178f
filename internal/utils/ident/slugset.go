package ident

import (
	"fmt"
	"strings"

	"SportsNations/internal/model"
)

// SameName 判定两个名称是否视为同一实体（仅忽略大小写与多余空白）
func SameName(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

// SlugSet 记录 slug → 首个名称，发现不同名称落到同一 slug 时报错，不自动改名
type SlugSet struct {
	names map[string]string
}

func NewSlugSet() *SlugSet {
	return &SlugSet{names: make(map[string]string)}
}

// Add 登记名称并返回其 slug
func (s *SlugSet) Add(name string) (string, error) {
	slug, err := Slug(name)
	if err != nil {
		return "", err
	}
	if prev, ok := s.names[slug]; ok && !SameName(prev, name) {
		return "", fmt.Errorf("%w: %q 与 %q 的 slug 均为 %q", model.ErrSlugCollision, prev, name, slug)
	}
	if _, ok := s.names[slug]; !ok {
		s.names[slug] = name
	}
	return slug, nil
}

// Name slug 对应的名称
func (s *SlugSet) Name(slug string) (string, bool) {
	n, ok := s.names[slug]
	return n, ok
}

// Len 已登记的 slug 数量
func (s *SlugSet) Len() int { return len(s.names) }
