package adapter

import (
	"fmt"
	"sort"

	"SportsNations/internal/config"
	"SportsNations/internal/interfaces"
	"SportsNations/internal/model"

	"github.com/sirupsen/logrus"
)

// Registry connector 标识到实例的映射，启动时构建，之后只读
type Registry struct {
	logger     *logrus.Logger
	connectors map[string]interfaces.Connector
}

// NewRegistry 用内置工厂表为每个 connector 创建实例，配置缺省时使用零值
func NewRegistry(cfg *config.Config, logger *logrus.Logger) *Registry {
	r := &Registry{
		logger:     logger,
		connectors: make(map[string]interfaces.Connector, len(builtin)),
	}
	for _, id := range ListFactories() {
		factory, _ := GetFactory(id)
		cc := cfg.Connector(id)
		ins := factory(&cc, logger)
		if ins.ID() != id {
			// 工厂表登记错误属于编程错误
			panic(fmt.Sprintf("connector 标识不匹配: 工厂表 %s, 实例 %s", id, ins.ID()))
		}
		r.connectors[id] = ins
	}
	for id := range cfg.Connectors {
		if _, ok := builtin[id]; !ok {
			logger.WithField("connector", id).Warn("配置中存在未知 connector，已忽略")
		}
	}
	logger.WithField("connectors", r.List()).Debug("connector 注册表初始化完成")
	return r
}

// NewEmptyRegistry 不含任何 connector，供测试注册替身
func NewEmptyRegistry(logger *logrus.Logger) *Registry {
	return &Registry{logger: logger, connectors: map[string]interfaces.Connector{}}
}

// Register 注册或替换一个实例，只应在初始化阶段调用
func (r *Registry) Register(c interfaces.Connector) {
	if c == nil {
		panic("connector 不能为 nil")
	}
	r.connectors[c.ID()] = c
}

// Get 按标识获取实例，未知标识返回 ErrUnknownConnector
func (r *Registry) Get(id string) (interfaces.Connector, error) {
	c, ok := r.connectors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q（可用：%v）", model.ErrUnknownConnector, id, r.List())
	}
	return c, nil
}

// List 全部标识，按字母排序
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.connectors))
	for id := range r.connectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 已注册数量
func (r *Registry) Len() int { return len(r.connectors) }
