// kolibri-cli - утилита для ручной работы с Kolibri content API.
//
// Использование:
//
//	kolibri-cli [global flags] channels [-available=false]
//	kolibri-cli [global flags] children [-user-kind superuser] <parent-id>
//	kolibri-cli [global flags] node <node-id>
//	kolibri-cli [global flags] fetch [-o path | -s3 [-name key]] <storage-url>
//	kolibri-cli [global flags] thumb [-width 320] -o out.jpg <storage-url>
//
// config.yaml ищется по -config, затем в текущей директории, затем рядом
// с бинарником. Без файла используются дефолты (http://localhost:8080).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilkoid/kolibri-sdk/pkg/config"
	"github.com/ilkoid/kolibri-sdk/pkg/debug"
	"github.com/ilkoid/kolibri-sdk/pkg/kolibri"
	"github.com/ilkoid/kolibri-sdk/pkg/s3storage"
	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Version - версия утилиты (заполняется при сборке)
var Version = "dev"

var (
	configFlag   = flag.String("config", "", "Path to config.yaml (default: ./config.yaml or next to binary)")
	testModeFlag = flag.Bool("test-mode", false, "Serve responses from the samples store instead of the network")
	emptyFlag    = flag.Bool("default-empty", false, "In test mode, return an empty response when a sample is missing")
	quietFlag    = flag.Bool("quiet", false, "Do not print responses and status messages")
	recordFlag   = flag.Bool("record", false, "Save successful live responses to the samples store")
	samplesFlag  = flag.String("samples", "", "Override kolibri.samples_path")
	journalFlag  = flag.String("journal", "", "Directory for the JSON request journal (overrides app.journal_dir)")
	metricsFlag  = flag.String("metrics-addr", "", "Expose Prometheus metrics on this address, e.g. :9091")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	os.Exit(run(flag.Arg(0), flag.Args()[1:]))
}

func run(command string, args []string) int {
	cfg, cfgPath, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	applyFlags(cfg)

	// === ИНИЦИАЛИЗАЦИЯ ЛОГГЕРА ===
	if err := utils.InitLogger(cfg.App.LogsDir, cfg.App.LogPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}

	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	utils.Info("kolibri-cli started", "version", Version, "config", cfgPath, "command", command)

	// Журнал запросов
	var recorder *debug.Recorder
	opts := []kolibri.Option{}
	if cfg.App.JournalDir != "" {
		recorder, err = debug.NewRecorder(debug.RecorderConfig{
			LogsDir:       cfg.App.JournalDir,
			BaseURL:       cfg.Kolibri.BaseURL,
			IncludeBodies: cfg.App.Debug,
			MaxBodySize:   4096,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Journal error: %v\n", err)
			return 1
		}
		opts = append(opts, kolibri.WithJournal(recorder))
	}

	client, err := kolibri.NewFromConfig(cfg.Kolibri, opts...)
	if err != nil {
		utils.Error("Client creation failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error creating client: %v\n", err)
		return 1
	}
	defer client.Close()

	if cfg.App.MetricsAddr != "" {
		serveMetrics(client, cfg.App.MetricsAddr)
	}

	started := time.Now()
	err = dispatchCommand(ctx, client, cfg, command, args)

	if recorder != nil {
		if path, ferr := recorder.Finalize(time.Since(started)); ferr != nil {
			utils.Warn("Failed to save journal", "error", ferr)
		} else {
			utils.Info("Journal saved", "path", path)
			fmt.Fprintf(os.Stderr, "Journal: %s\n", path)
		}
	}

	if err != nil {
		utils.Error("Command failed", "command", command, "error", err, "type", kolibri.ClassifyError(err).String())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	utils.Info("Command completed", "command", command, "duration", time.Since(started))
	return 0
}

// applyFlags переопределяет значения из config.yaml флагами командной строки.
func applyFlags(cfg *config.AppConfig) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["test-mode"] {
		cfg.Kolibri.TestMode = *testModeFlag
	}
	if set["default-empty"] {
		cfg.Kolibri.TestModeDefaultEmpty = *emptyFlag
	}
	if set["quiet"] {
		cfg.Kolibri.QuietMode = *quietFlag
	}
	if set["record"] {
		cfg.Kolibri.RecordSamples = *recordFlag
	}
	if *samplesFlag != "" {
		cfg.Kolibri.SamplesPath = *samplesFlag
	}
	if *journalFlag != "" {
		cfg.App.JournalDir = *journalFlag
	}
	if *metricsFlag != "" {
		cfg.App.MetricsAddr = *metricsFlag
	}
}

func dispatchCommand(ctx context.Context, client *kolibri.Client, cfg *config.AppConfig, command string, args []string) error {
	switch command {
	case "channels":
		fs := flag.NewFlagSet("channels", flag.ExitOnError)
		available := fs.Bool("available", true, "Only available channels")
		_ = fs.Parse(args)

		_, err := client.GetChannels(ctx, *available)
		return err

	case "children":
		fs := flag.NewFlagSet("children", flag.ExitOnError)
		userKind := fs.String("user-kind", kolibri.DefaultUserKind, "User role for the listing")
		_ = fs.Parse(args)
		if fs.NArg() != 1 {
			return errors.New("usage: children [-user-kind kind] <parent-id>")
		}

		_, err := client.GetChildren(ctx, fs.Arg(0), *userKind)
		return err

	case "node":
		if len(args) != 1 {
			return errors.New("usage: node <node-id>")
		}
		_, err := client.GetNodeDetails(ctx, args[0])
		return err

	case "fetch":
		return fetch(ctx, client, cfg, args)

	case "thumb":
		return thumb(ctx, client, cfg, args)

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func fetch(ctx context.Context, client *kolibri.Client, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	out := fs.String("o", "", "Save content to this file")
	toS3 := fs.Bool("s3", false, "Upload content to the configured S3 bucket")
	name := fs.String("name", "", "Object name in S3 (default: last path segment)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: fetch [-o path | -s3 [-name key]] <storage-url>")
	}
	storageURL := fs.Arg(0)

	if *toS3 {
		sink, err := s3storage.New(cfg.S3)
		if err != nil {
			return fmt.Errorf("s3 init: %w", err)
		}
		resp, err := client.FetchContentTo(ctx, storageURL, sink, *name)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Uploaded %d bytes to s3://%s\n", len(resp.Body), cfg.S3.Bucket)
		return nil
	}

	resp, err := client.FetchContent(ctx, storageURL, *out)
	if err != nil {
		return err
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Saved %d bytes to %s\n", len(resp.Body), *out)
	}
	return nil
}

func thumb(ctx context.Context, client *kolibri.Client, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("thumb", flag.ExitOnError)
	width := fs.Int("width", cfg.ImageProcessing.MaxWidth, "Thumbnail width in pixels")
	quality := fs.Int("quality", cfg.ImageProcessing.Quality, "JPEG quality (1-100)")
	out := fs.String("o", "thumbnail.jpg", "Output file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: thumb [-width N] [-quality Q] [-o out.jpg] <storage-url>")
	}

	data, size, err := client.FetchThumbnail(ctx, fs.Arg(0), *width, *quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Thumbnail %dx%d saved to %s\n", size.X, size.Y, *out)
	return nil
}

// serveMetrics поднимает /metrics в фоне. Ошибка сервера только логируется.
func serveMetrics(client *kolibri.Client, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(client.Registry(), promhttp.HandlerOpts{}))

	go func() {
		utils.Info("Metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("Metrics server failed", "error", err)
		}
	}()
}

func usage() {
	fmt.Fprintf(os.Stderr, `kolibri-cli %s

Usage: kolibri-cli [flags] <command> [args]

Commands:
  channels   list channels
  children   list children of a node
  node       show node details
  fetch      download content by storage url
  thumb      download an image and save a JPEG thumbnail

Flags:
`, Version)
	flag.PrintDefaults()
}
