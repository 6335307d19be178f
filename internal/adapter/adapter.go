package adapter

import (
	"sort"

	"SportsNations/internal/adapter/fifaranking"
	"SportsNations/internal/adapter/footballdata"
	"SportsNations/internal/adapter/olympics"
	"SportsNations/internal/adapter/wikidata"
	"SportsNations/internal/adapter/worldcup"
	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// Factory connector 工厂函数签名
// 入参：connector 配置、日志实例
// 出参：实现 Connector 接口的实例
type Factory func(cfg *config.ConnectorConfig, logger *logrus.Logger) interfaces.Connector

// builtin 内置 connector 的固定工厂表，新增数据源需要在这里登记
var builtin = map[string]Factory{
	wikidata.ID:     wikidata.NewWikidataAdapter,
	footballdata.ID: footballdata.NewFootballDataAdapter,
	fifaranking.ID:  fifaranking.NewFifaRankingAdapter,
	worldcup.ID:     worldcup.NewWorldCupAdapter,
	olympics.ID:     olympics.NewOlympicsAdapter,
}

// GetFactory 获取指定 connector 的工厂函数
func GetFactory(id string) (Factory, bool) {
	factory, ok := builtin[id]
	return factory, ok
}

// ListFactories 列出所有内置 connector 标识（已排序）
func ListFactories() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
