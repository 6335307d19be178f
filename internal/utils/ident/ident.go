// Package ident 生成稳定标识：slug、国家代码、内容哈希 ID。所有函数均为纯函数。
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"SportsNations/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HashVersion 哈希 ID 组成规则的版本号，修改组成方式必须同时升级版本
const HashVersion = "v1"

// hashHexLen 截断后的十六进制长度（16 字节）
const hashHexLen = 32

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	countryRe = regexp.MustCompile(`^[A-Z]{3}$`)

	// 无法通过 NFD 分解去掉的字母
	letterFold = strings.NewReplacer(
		"ß", "ss", "æ", "ae", "Æ", "ae", "ø", "o", "Ø", "o",
		"ł", "l", "Ł", "l", "đ", "d", "Đ", "d", "œ", "oe", "Œ", "oe",
		"þ", "th", "Þ", "th", "ı", "i",
	)
)

// stripAccents 去除变音符号
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug 名称转小写、去重音、分隔符归一后的标识，用于 Sport/Discipline 主键
func Slug(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: slug 名称为空", model.ErrInvalidInput)
	}
	s := strings.ToLower(stripAccents(letterFold.Replace(trimmed)))
	s = strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "", fmt.Errorf("%w: 名称%q无法生成 slug", model.ErrInvalidInput, name)
	}
	return s, nil
}

// CountryID 校验并返回规范的三字母国家代码；其他编码体系须由调用方先显式映射
func CountryID(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return "", fmt.Errorf("%w: 国家代码为空", model.ErrInvalidInput)
	}
	if !countryRe.MatchString(c) {
		return "", fmt.Errorf("%w: 国家代码%q不是三字母代码", model.ErrInvalidInput, code)
	}
	return c, nil
}

// HashID 内容哈希 ID：kind + "_" + hex(sha256("v1|kind|p1|p2|..."))[:32]
// 字段组成与顺序属于公开约定，任何修改都会改变下游所有 ID
func HashID(kind string, parts ...string) (string, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "", fmt.Errorf("%w: 哈希 ID 类型为空", model.ErrInvalidInput)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s 哈希 ID 缺少字段", model.ErrInvalidInput, kind)
	}
	fields := make([]string, 0, len(parts)+2)
	fields = append(fields, HashVersion, kind)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("%w: %s 哈希 ID 第%d个字段为空", model.ErrInvalidInput, kind, i+1)
		}
		fields = append(fields, p)
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return kind + "_" + hex.EncodeToString(sum[:])[:hashHexLen], nil
}

// ImportID raw_imports 主键
func ImportID(sourceID string, fetchedAt time.Time, seasonYear int, runID string) (string, error) {
	return HashID("import", sourceID, fetchedAt.UTC().Format(time.RFC3339Nano), strconv.Itoa(seasonYear), runID)
}

// Year 年份转哈希字段
func Year(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}
