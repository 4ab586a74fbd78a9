package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/DeafMist/truthguard/backend/internal/ingest"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/models"
	"github.com/DeafMist/truthguard/backend/internal/processing"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/DeafMist/truthguard/backend/internal/store"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	title   string
	content string
	hint    string
	file    string
	feed    string
	persist bool
	compact bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log := logger.NewWriter(stderr, "analyze")

	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	inputs, err := collectInputs(opts, stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	for i := range inputs {
		if opts.hint != "" {
			inputs[i].Language = opts.hint
		}
		if err := inputs[i].Validate(); err != nil {
			fmt.Fprintf(stderr, "input %d: %v\n", i+1, err)
			return exitFailure
		}
	}

	profiles, err := profile.LoadEmbedded()
	if err != nil {
		log.Error("load language profiles", slog.Any("err", err))
		return exitFailure
	}
	pipeline, err := analysis.New(profiles, lang.NewDetector(log), analysis.WithLogger(log))
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		return exitFailure
	}

	cfg, err := config.LoadCLI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		return exitFailure
	}

	var st store.Store
	if opts.persist || cfg.Persist {
		st, err = store.Open(ctx, cfg.Common, log)
		if err != nil {
			log.Error("open store", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
			return exitFailure
		}
		defer st.Close()
	}

	records := make([]models.AnalysisRecord, 0, len(inputs))
	for i := range inputs {
		res, err := pipeline.Analyze(&inputs[i])
		if err != nil {
			log.Error("analyze", slog.Int("input", i+1), slog.Any("err", err))
			return exitFailure
		}
		rec := models.NewRecord(cfg.UserID, res, time.Now())
		rec.Fingerprint = processing.Fingerprint(cfg.UserID, inputs[i].Title, inputs[i].Content, inputs[i].Language)

		if st != nil {
			if err := st.Save(ctx, rec); err != nil {
				log.Warn("save analysis", slog.String("id", rec.ID), slog.Any("err", err))
			}
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(stdout)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	var payload any = records
	if len(records) == 1 {
		payload = records[0]
	}
	if err := enc.Encode(payload); err != nil {
		log.Error("write output", slog.Any("err", err))
		return exitFailure
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.title, "title", "", "news title")
	fs.StringVar(&opts.content, "content", "", "news content")
	fs.StringVar(&opts.hint, "lang", "", "language hint, e.g. en or pt-BR")
	fs.StringVar(&opts.file, "file", "", "analyze a .txt, .html, .htm or .pdf file")
	fs.StringVar(&opts.feed, "feed", "", "analyze every item of an RSS/Atom feed file, - for stdin")
	fs.BoolVar(&opts.persist, "persist", false, "store results in the configured backend")
	fs.BoolVar(&opts.compact, "compact", false, "print JSON on one line")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	sources := 0
	for _, set := range []bool{opts.title != "" || opts.content != "", opts.file != "", opts.feed != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("use exactly one of -title/-content, -file or -feed")
	}
	return opts, nil
}

func collectInputs(opts *options, stdin io.Reader) ([]analysis.Input, error) {
	switch {
	case opts.file != "":
		return ingest.ParseFile(opts.file)
	case opts.feed == "-":
		return ingest.ParseFeed(stdin)
	case opts.feed != "":
		f, err := os.Open(opts.feed)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		return ingest.ParseFeed(f)
	default:
		return []analysis.Input{{Title: opts.title, Content: opts.content}}, nil
	}
}
