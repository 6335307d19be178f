package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"SportsNations/internal/adapter"
	"SportsNations/internal/config"
	"SportsNations/internal/model"
	"SportsNations/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 退出码
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitIngest     = 3
)

var (
	configPath string
	logLevel   string
)

// exitError 携带退出码的错误
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

var rootCmd = &cobra.Command{
	Use:           "sportsnations",
	Short:         "National sports rankings ingestion and normalization",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖 log.level：debug/info/warn/error")
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintln(os.Stderr, "错误:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if errors.Is(err, model.ErrValidationFailure) {
		os.Exit(exitValidation)
	}
	os.Exit(exitFailure)
}

// app 每个子命令共享的运行环境
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *repository.Store
}

// setup 加载配置 → 初始化日志 → 打开存储（自动迁移）
func setup() (*app, error) {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// 2. 初始化日志
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger.WithField("driver", cfg.Store.Driver).Debug("配置文件加载成功")

	// 3. 打开存储，库表不存在则自动创建
	store, err := repository.Open(&cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("关闭存储失败")
	}
}

func (a *app) registry() *adapter.Registry {
	return adapter.NewRegistry(a.cfg, a.logger)
}

func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level := lc.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: 日志级别%q", model.ErrInvalidInput, level)
	}
	logger.SetLevel(lvl)
	if strings.EqualFold(lc.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
