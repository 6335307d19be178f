package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"SportsNations/internal/api"
	"SportsNations/internal/model"
	"SportsNations/internal/repository"
	"SportsNations/internal/service"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	ingestConnector string
	ingestYear      int
	ingestAll       bool

	exportFormat string
	exportForce  bool
	exportDir    string

	importsSource string
	importsLimit  int

	servePort int
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap-dimensions",
	Short: "Load countries, sports and disciplines from the bundled seeds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		report, err := service.NewBootstrapService(a.store, a.cfg, a.logger).Bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		inserted, updated := report.Report.Total()
		fmt.Printf("countries=%d sports=%d disciplines=%d inserted=%d updated=%d\n",
			report.Countries, report.Sports, report.Disciplines, inserted, updated)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, parse and upsert one connector (or all) for a season year",
	Long: `Run fetch → parse → upsert for a connector and record the attempt in raw_imports.

Examples:
  sportsnations ingest --connector fifa_ranking --year 2022
  sportsnations ingest --all --year 2024`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestAll == (ingestConnector != "") {
		return withCode(exitFailure, fmt.Errorf("%w: --connector 与 --all 必须且只能指定一个", model.ErrInvalidInput))
	}
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	svc := service.NewIngestService(a.store, a.registry(), a.cfg, a.logger)
	var outcomes []*service.IngestOutcome
	if ingestAll {
		outcomes, err = svc.IngestAll(cmd.Context(), ingestYear, nil)
	} else {
		var o *service.IngestOutcome
		o, err = svc.Ingest(cmd.Context(), ingestConnector, ingestYear)
		if o != nil {
			outcomes = append(outcomes, o)
		}
	}
	failed := 0
	for _, o := range outcomes {
		line := fmt.Sprintf("%s year=%d status=%s import_id=%s", o.ConnectorID, o.SeasonYear, o.Status, o.ImportID)
		if o.Origin != "" {
			line += " origin=" + string(o.Origin)
		}
		if o.Error != "" {
			line += " error=" + o.Error
		}
		fmt.Println(line)
		if o.Status == model.ImportError {
			failed++
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return withCode(exitIngest, fmt.Errorf("%d 个 connector 抓取失败", failed))
	}
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run every integrity check and report violations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		report := service.NewValidator(a.store.DB(), a.logger).Run(cmd.Context())
		for _, c := range report.Checks {
			mark := "ok"
			if !c.OK {
				mark = fmt.Sprintf("FAIL (%d)", c.InvalidRows)
			}
			fmt.Printf("%-45s %s\n", c.Name, mark)
		}
		for _, v := range report.Violations {
			fmt.Printf("  %s [%s] %s: %s\n", v.Check, v.Table, v.RowKey, v.Reason)
		}
		return withCode(exitValidation, report.Err())
	},
}

var exportCmd = &cobra.Command{
	Use:   "init-databases",
	Short: "Export reference, competition and lineage bases as flat files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		opts := service.ExportOptions{Dir: exportDir, Format: exportFormat, Force: exportForce}
		manifest, report, err := service.NewExportService(a.store, a.cfg, a.logger).Export(cmd.Context(), opts)
		if err != nil {
			if report != nil && !report.Passed {
				return withCode(exitValidation, err)
			}
			return err
		}
		for name, b := range manifest.Databases {
			fmt.Printf("%s -> %s %v\n", name, b.Path, b.RowsSynced)
		}
		return nil
	},
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List registered connectors",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		reg := a.registry()
		for _, id := range reg.List() {
			c, _ := reg.Get(id)
			fmt.Printf("%-20s %-6s %s\n", id, c.Source().SourceType, c.Source().SourceName)
		}
		return nil
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "Show the latest raw_imports rows as JSON lines",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		rows, err := a.store.Imports().List(cmd.Context(), repository.ImportFilter{SourceID: importsSource, Limit: importsLimit})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, r := range rows {
			if err := enc.Encode(map[string]interface{}{
				"import_id":   r.ImportID,
				"source_id":   model.Deref(r.SourceID),
				"season_year": r.SeasonYear,
				"status":      r.Status,
				"error":       model.Deref(r.Error),
				"fetched_at":  r.FetchedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the cron scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := a.registry()
	ingest := service.NewIngestService(a.store, registry, a.cfg, a.logger)
	scheduler := service.NewScheduler(ingest, service.NewValidator(a.store.DB(), a.logger), a.cfg.Schedule, a.logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Deps{
		Store:     a.store,
		Registry:  registry,
		Ingest:    ingest,
		Export:    service.NewExportService(a.store, a.cfg, a.logger),
		Scheduler: scheduler,
		Logger:    a.logger,
		Mode:      a.cfg.Server.Mode,
		Pprof:     !strings.EqualFold(a.cfg.Server.Mode, "release"),
	})

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithFields(logrus.Fields{"port": port, "mode": a.cfg.Server.Mode}).Info("服务启动成功")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info("正在关闭服务")
	return srv.Shutdown(shutdownCtx)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestConnector, "connector", "", "connector 标识")
	ingestCmd.Flags().IntVar(&ingestYear, "year", time.Now().UTC().Year(), "赛季年份")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "顺序抓取全部已注册 connector")

	exportCmd.Flags().StringVar(&exportFormat, "format", service.FormatCSV, "导出格式：csv/json")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "校验未通过也导出")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "导出目录（默认 paths.export_dir）")

	importsCmd.Flags().StringVar(&importsSource, "source", "", "按 source_id 过滤")
	importsCmd.Flags().IntVar(&importsLimit, "limit", 20, "最多返回行数")

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "覆盖 server.port")

	rootCmd.AddCommand(bootstrapCmd, ingestCmd, validateCmd, exportCmd, connectorsCmd, importsCmd, serveCmd)
}
