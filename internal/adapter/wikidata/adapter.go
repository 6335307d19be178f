// Package wikidata 通过 Wikidata SPARQL 获取运动及其国际单项联合会。
package wikidata

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"SportsNations/internal/adapter/base"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	ID           = "wikidata_sports"
	endpoint     = "https://query.wikidata.org/sparql"
	snapshotFile = "wikidata_sport_federations.json"
	entityPrefix = "http://www.wikidata.org/entity/"
)

const sportsQuery = `
SELECT ?sport ?sportLabel ?federation ?federationLabel WHERE {
  ?sport wdt:P31/wdt:P279* wd:Q31629.
  OPTIONAL { ?sport wdt:P2416 ?federation. }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT 500
`

// sampleBindings 端点不可达且没有本地种子时使用的内置样例
//
//go:embed sample_bindings.json
var sampleBindings []byte

// 没有英文标签时 SPARQL 返回 QID 本身
var bareQID = regexp.MustCompile(`^Q\d+$`)

type Adapter struct {
	base.Base
}

func NewWikidataAdapter(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector {
	return &Adapter{Base: base.NewBase(ID, cfg, logger)}
}

func (a *Adapter) Source() *model.Source {
	return &model.Source{
		SourceID:     ID,
		SourceName:   "Wikidata SPARQL",
		SourceType:   "sparql",
		LicenseNotes: model.Ptr("CC0 (Wikidata), verify downstream license compatibility."),
		BaseURL:      model.Ptr(a.BaseURL(endpoint)),
	}
}

func (a *Adapter) Fetch(ctx context.Context, _ int, outDir string) model.SnapshotResult {
	res := a.FetchWithFallback(ctx, outDir, base.FetchPlan{
		Remote: []base.RemoteFile{{
			Name: snapshotFile,
			Request: base.Request{
				URL:     a.BaseURL(endpoint),
				Query:   url.Values{"query": {sportsQuery}, "format": {"json"}},
				Headers: map[string]string{"Accept": "application/sparql-results+json"},
			},
		}},
		SeedPath: a.SeedPath(""),
	})
	if res.OK() || ctx.Err() != nil || res.Dir == "" {
		return res
	}

	// 远程与种子都不可用：写入内置样例
	path, err := base.WriteRaw(res.Dir, snapshotFile, sampleBindings)
	if err != nil {
		return model.Failed(res.Dir, err)
	}
	meta := map[string]interface{}{"origin": string(model.OriginLocalSeed), "seed_path": "embedded:sample_bindings.json", "remote_error": res.Err.Error()}
	if err := base.WriteMeta(res.Dir, meta); err != nil {
		return model.Failed(res.Dir, err)
	}
	a.Logger.WithError(res.Err).Warn("Wikidata 不可达，使用内置样例")
	return model.Fetched(model.OriginLocalSeed, res.Dir, []string{path}, meta)
}

type term struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]term `json:"bindings"`
	} `json:"results"`
}

func (a *Adapter) Parse(rawPaths []string, _ int) (*model.NormalizedPayload, error) {
	out := base.NewPayload(a.Source())
	found := false
	seenFederation := map[string]bool{}
	for _, path := range base.DataFiles(rawPaths) {
		if !strings.HasSuffix(strings.ToLower(path), ".json") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取快照失败: %w", err)
		}
		var resp sparqlResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, base.WrapParse(err, "解析 SPARQL 结果")
		}
		found = true
		for _, b := range resp.Results.Bindings {
			name := strings.TrimSpace(b["sportLabel"].Value)
			if name == "" || bareQID.MatchString(name) {
				continue
			}
			sport, err := base.SportRow(name)
			if err != nil {
				continue
			}
			out.Sport(sport)

			qid := strings.TrimPrefix(b["federation"].Value, entityPrefix)
			if qid == "" || !bareQID.MatchString(qid) {
				continue
			}
			key := sport.SportID + "|" + qid
			if seenFederation[key] {
				continue
			}
			seenFederation[key] = true
			out.Federation(&model.SportFederation{
				SportID:        sport.SportID,
				FederationQID:  qid,
				FederationName: model.StrPtr(strings.TrimSpace(b["federationLabel"].Value)),
			})
		}
	}
	if !found {
		return nil, base.ParseErr("快照中没有 SPARQL 结果文件")
	}
	return out.Build(), nil
}
