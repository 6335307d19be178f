// Package countrycode 国家代码的显式映射：ISO 3166 国家来自 x/text，历史代码与奥委会代码用固定表。
package countrycode

import (
	"sort"
	"strings"
	"sync"

	"SportsNations/internal/model"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Info 国家代码信息
type Info struct {
	Code   string // 规范代码（ISO3 或历史代码）
	ISO2   string // 历史代码为空
	NameEN string
	NameFR string
}

// historical 已不存在或体育专用、没有 ISO3 的代码
var historical = map[string]Info{
	"ENG": {Code: "ENG", NameEN: "England", NameFR: "Angleterre"},
	"SCO": {Code: "SCO", NameEN: "Scotland", NameFR: "Écosse"},
	"WAL": {Code: "WAL", NameEN: "Wales", NameFR: "Pays de Galles"},
	"NIR": {Code: "NIR", NameEN: "Northern Ireland", NameFR: "Irlande du Nord"},
	"URS": {Code: "URS", NameEN: "Soviet Union", NameFR: "Union soviétique"},
	"TCH": {Code: "TCH", NameEN: "Czechoslovakia", NameFR: "Tchécoslovaquie"},
	"YUG": {Code: "YUG", NameEN: "Yugoslavia", NameFR: "Yougoslavie"},
	"DDR": {Code: "DDR", NameEN: "East Germany", NameFR: "Allemagne de l'Est"},
	"SCG": {Code: "SCG", NameEN: "Serbia and Montenegro", NameFR: "Serbie-et-Monténégro"},
	"EUN": {Code: "EUN", NameEN: "Unified Team", NameFR: "Équipe unifiée"},
	"ANZ": {Code: "ANZ", NameEN: "Australasia", NameFR: "Australasie"},
	"BOH": {Code: "BOH", NameEN: "Bohemia", NameFR: "Bohême"},
	"ZAI": {Code: "ZAI", NameEN: "Zaire", NameFR: "Zaïre"},
}

// aliases 其他编码体系到规范代码的显式映射（奥委会/FIFA 代码、旧代码）
var aliases = map[string]string{
	"FRG": "DEU", "GER": "DEU", "GDR": "DDR",
	"NED": "NLD", "SUI": "CHE", "DEN": "DNK", "POR": "PRT", "GRE": "GRC",
	"CRO": "HRV", "RSA": "ZAF", "BUL": "BGR", "LAT": "LVA", "SLO": "SVN",
	"IRI": "IRN", "INA": "IDN", "MAS": "MYS", "PHI": "PHL", "VIE": "VNM",
	"CHI": "CHL", "URU": "URY", "PAR": "PRY", "KSA": "SAU", "UAE": "ARE",
	"TPE": "TWN", "ALG": "DZA", "NGR": "NGA", "ZIM": "ZWE", "ZAM": "ZMB",
	"MGL": "MNG", "HAI": "HTI", "GUA": "GTM", "CRC": "CRI", "ESA": "SLV",
	"HON": "HND", "PUR": "PRI", "TRI": "TTO", "BAH": "BHS", "BAR": "BRB",
	"FIJ": "FJI", "SRI": "LKA", "NEP": "NPL", "BAN": "BGD", "LIB": "LBN",
	"KUW": "KWT", "OMA": "OMN", "BRU": "BRN", "MYA": "MMR", "CAM": "KHM",
	"SUD": "SDN", "LBA": "LBY", "ANG": "AGO", "BOT": "BWA", "TAN": "TZA",
	"GAM": "GMB", "GRN": "GRD", "ISV": "VIR", "IVB": "VGB", "ARU": "ABW",
	"SKN": "KNA", "VIN": "VCT", "NIG": "NER", "TOG": "TGO", "MTN": "MRT",
	"GEQ": "GNQ", "SEY": "SYC", "MRI": "MUS", "MAW": "MWI", "LES": "LSO",
	"BIZ": "BLZ", "SAM": "WSM", "TGA": "TON", "VAN": "VUT", "SOL": "SLB",
	"ROM": "ROU", "ZAR": "ZAI",
}

// unassigned x/text 认作国家、但不在 ISO 3166-1 正式分配表里的两位代码：
// 已废止（AN、CS、FX 等）与特别保留（AC、EA、IC 等）
var unassigned = map[string]bool{
	"AC": true, "AN": true, "BU": true, "CP": true, "CS": true, "DD": true,
	"DG": true, "EA": true, "EU": true, "EZ": true, "FX": true, "IC": true,
	"NT": true, "QO": true, "SU": true, "TA": true, "TP": true, "UK": true,
	"UN": true, "XK": true, "YD": true, "YU": true, "ZR": true, "ZZ": true,
}

// assigned 正式分配、有英文名的 ISO 3166-1 国家或地区
func assigned(region language.Region) bool {
	if !region.IsCountry() || region.IsGroup() || region.IsPrivateUse() || unassigned[region.String()] {
		return false
	}
	return len(region.ISO3()) == 3 && display.English.Regions().Name(region) != ""
}

// Normalize 把别名代码转换为规范代码，未知代码原样（大写）返回
func Normalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if to, ok := aliases[c]; ok {
		return to
	}
	return c
}

// Lookup 查询规范代码的信息（先历史表，再 ISO 3166）
func Lookup(code string) (Info, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if info, ok := historical[c]; ok {
		return info, true
	}
	if len(c) != 3 {
		return Info{}, false
	}
	region, err := language.ParseRegion(c)
	if err != nil || !assigned(region) || region.ISO3() != c {
		return Info{}, false
	}
	return infoOf(region), true
}

// FromISO2 ISO2 转规范代码
func FromISO2(iso2 string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(iso2))
	if len(c) != 2 {
		return "", false
	}
	region, err := language.ParseRegion(c)
	if err != nil || region.String() != c || !assigned(region) {
		return "", false
	}
	return region.ISO3(), true
}

func infoOf(region language.Region) Info {
	return Info{
		Code:   region.ISO3(),
		ISO2:   region.String(),
		NameEN: display.English.Regions().Name(region),
		NameFR: display.French.Regions().Name(region),
	}
}

var (
	allOnce   sync.Once
	allInfos  []Info
	byNameMap map[string]string
)

func load() {
	seen := make(map[string]bool)
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			code := string([]rune{a, b})
			region, err := language.ParseRegion(code)
			if err != nil || region.String() != code {
				continue
			}
			if !assigned(region) {
				continue
			}
			iso3 := region.ISO3()
			if seen[iso3] {
				continue
			}
			seen[iso3] = true
			allInfos = append(allInfos, infoOf(region))
		}
	}
	for _, info := range historical {
		if !seen[info.Code] {
			seen[info.Code] = true
			allInfos = append(allInfos, info)
		}
	}
	sort.Slice(allInfos, func(i, j int) bool { return allInfos[i].Code < allInfos[j].Code })

	// 同名时先到先得，ISO 国家优先于历史代码
	byNameMap = make(map[string]string, len(allInfos))
	for _, iso := range []bool{true, false} {
		for _, info := range allInfos {
			key := nameKey(info.NameEN)
			if (info.ISO2 != "") != iso || key == "" {
				continue
			}
			if _, taken := byNameMap[key]; !taken {
				byNameMap[key] = info.Code
			}
		}
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// All ISO 3166 国家加历史代码，按代码排序
func All() []Info {
	allOnce.Do(load)
	out := make([]Info, len(allInfos))
	copy(out, allInfos)
	return out
}

// ByEnglishName 英文名精确匹配（忽略大小写与空白），不做模糊匹配
func ByEnglishName(name string) (string, bool) {
	allOnce.Do(load)
	code, ok := byNameMap[nameKey(name)]
	return code, ok
}

// Row 构造国家行；同一代码无论由谁构造都得到相同的列值
func Row(code, fallbackName string) *model.Country {
	c := strings.ToUpper(strings.TrimSpace(code))
	if info, ok := Lookup(c); ok {
		return &model.Country{
			CountryID: info.Code,
			ISO2:      model.StrPtr(info.ISO2),
			ISO3:      info.Code,
			NameEN:    info.NameEN,
			NameFR:    model.StrPtr(info.NameFR),
		}
	}
	name := strings.TrimSpace(fallbackName)
	if name == "" {
		name = c
	}
	return &model.Country{CountryID: c, ISO3: c, NameEN: name}
}
