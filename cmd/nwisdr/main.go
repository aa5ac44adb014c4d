package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	csvadapter "github.com/wanluwen/dataRetrieval/internal/adapter/csvfile"
	httpadapter "github.com/wanluwen/dataRetrieval/internal/adapter/http"
	kafkaadapter "github.com/wanluwen/dataRetrieval/internal/adapter/kafka"
	"github.com/wanluwen/dataRetrieval/internal/adapter/nwis"
	"github.com/wanluwen/dataRetrieval/internal/adapter/sqlite"
	"github.com/wanluwen/dataRetrieval/internal/config"
	"github.com/wanluwen/dataRetrieval/internal/observability"
	"github.com/wanluwen/dataRetrieval/internal/pipeline"
	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

var CLI struct {
	Fetch struct {
		Sites        []string      `short:"s" required:"" help:"NWIS site numbers"`
		ParameterCds []string      `short:"p" name:"parameters" help:"USGS parameter codes (e.g. 00060)"`
		StatCds      []string      `name:"stats" help:"Statistic codes, daily-value service only (e.g. 00003)"`
		Service      string        `default:"dv" enum:"iv,dv" help:"NWIS service: iv or dv"`
		StartDT      string        `name:"start" help:"Start date, ISO 8601"`
		EndDT        string        `name:"end" help:"End date, ISO 8601"`
		Period       string        `help:"ISO 8601 duration (e.g. P7D), exclusive with start/end"`
		AsDatetime   bool          `help:"Parse timestamps into real datetimes instead of keeping zone labels"`
		TZ           string        `help:"IANA timezone for parsed datetimes (implies --as-datetime semantics for the zone)"`
		Output       string        `short:"o" help:"CSV output path (default stdout)"`
		BaseURL      string        `default:"https://waterservices.usgs.gov/nwis" help:"NWIS base URL"`
		Timeout      time.Duration `default:"30s" help:"HTTP timeout"`
	} `cmd:"" help:"Fetch one WaterML document, normalize it, and write CSV"`

	Serve struct {
		EnvFile string `help:"Optional .env file to load before reading the environment"`
	} `cmd:"" help:"Run the polling service configured from the environment"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("nwisdr"),
		kong.Description("Normalize USGS NWIS WaterML 1.x time series into wide tables."))

	var err error
	switch ctx.Command() {
	case "fetch":
		err = runFetch()
	case "serve":
		err = runServe()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "nwisdr:", err)
		os.Exit(1)
	}
}

func runFetch() error {
	f := CLI.Fetch
	if f.Period != "" && (f.StartDT != "" || f.EndDT != "") {
		return errors.New("--period is mutually exclusive with --start/--end")
	}

	logger := observability.NewLogger("warn", "text")
	client := nwis.NewClient(f.BaseURL, "dataRetrieval-go/1.0", f.Timeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, source, err := client.Fetch(ctx, nwis.Query{
		Service:      f.Service,
		Sites:        f.Sites,
		ParameterCds: f.ParameterCds,
		StatCds:      f.StatCds,
		StartDT:      f.StartDT,
		EndDT:        f.EndDT,
		Period:       f.Period,
	})
	if err != nil {
		return err
	}

	res, err := waterml.Read(data, source, waterml.Options{
		AsDatetime: f.AsDatetime,
		TzOverride: f.TZ,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if f.Output != "" {
		file, err := os.Create(f.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return csvadapter.Write(out, res)
}

func runServe() error {
	if CLI.Serve.EnvFile != "" {
		if err := godotenv.Load(CLI.Serve.EnvFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	client := nwis.NewClient(cfg.NWISBaseURL, cfg.UserAgent, cfg.HTTPTimeout, logger)

	var sinks []pipeline.Sink
	var closers []func() error

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, writer.Close)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("open sqlite sink: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}
	if cfg.CSVPath != "" {
		sinks = append(sinks, csvadapter.NewFileSink(cfg.CSVPath))
		logger.Info("csv sink enabled", "path", cfg.CSVPath)
	}

	queries := []nwis.Query{{
		Service:      cfg.Service,
		Sites:        cfg.Sites,
		ParameterCds: cfg.ParameterCds,
		StatCds:      cfg.StatCds,
		StartDT:      cfg.StartDT,
		EndDT:        cfg.EndDT,
		Period:       cfg.Period,
	}}
	opts := waterml.Options{
		AsDatetime: cfg.ParseDatetime,
		TzOverride: cfg.TimezoneOverride,
	}

	p := pipeline.New(client, sinks, queries, opts, cfg.PollInterval, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	pipelineErr := make(chan error, 1)
	go func() { pipelineErr <- p.Run(ctx) }()

	var runErr error
	select {
	case runErr = <-pipelineErr:
		if runErr != nil {
			logger.Error("pipeline error", "error", runErr)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
