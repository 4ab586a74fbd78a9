package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/truthguard/backend/internal/analysis"
	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/DeafMist/truthguard/backend/internal/dedupe"
	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/models"
	"github.com/DeafMist/truthguard/backend/internal/processing"
	"github.com/DeafMist/truthguard/backend/internal/profile"
	"github.com/DeafMist/truthguard/backend/internal/store"
)

const (
	dlqAttempts = 5
	titleWords  = 10
)

// analysisRequest is one message on the request topic.
type analysisRequest struct {
	RequestID   string `json:"requestId"`
	UserID      string `json:"userId"`
	SubmittedAt string `json:"submittedAt"`
	analysis.Input
}

type recordSaver interface {
	Save(ctx context.Context, rec models.AnalysisRecord) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type processor struct {
	log      *slog.Logger
	pipeline *analysis.Pipeline
	store    recordSaver
	results  messageWriter
	cache    *dedupe.Cache
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	profiles, err := profile.LoadEmbedded()
	if err != nil {
		log.Error("load language profiles", slog.Any("err", err))
		os.Exit(1)
	}
	pipeline, err := analysis.New(profiles, lang.NewDetector(log), analysis.WithLogger(log))
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	st, err := store.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	resultsWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.ResultsTopic,
		MaxAttempts:  3,
		BatchTimeout: cfg.CommitInterval,
		BatchSize:    1,
	})
	defer resultsWriter.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	p := &processor{
		log:      log,
		pipeline: pipeline,
		store:    st,
		results:  resultsWriter,
		cache:    dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL),
	}

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("results_topic", cfg.ResultsTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.String("store", cfg.StoreBackend),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := p.processMessage(ctx, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Only commit once the DLQ holds the message; otherwise it is reprocessed on restart.
			if !deadLetter(ctx, log, dlqWriter, msg, err, exponentialBackoff) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage analyzes one request, stores the record and publishes it to
// the results topic. Repeated requests inside the dedupe window are skipped.
func (p *processor) processMessage(ctx context.Context, msg kafka.Message) error {
	var req analysisRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" && strings.TrimSpace(req.Content) != "" {
		req.Title = processing.GenerateTitleFromText(req.Content, titleWords)
	}
	if req.SourceURL == "" {
		if urls := processing.ExtractURLs(req.Content); len(urls) > 0 {
			req.SourceURL = urls[0]
		}
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validate request: %w", err)
	}

	user := strings.TrimSpace(req.UserID)
	if user == "" {
		user = "anonymous"
	}

	fingerprint := processing.Fingerprint(user, req.Title, req.Content, req.Language)
	if id, ok := p.cache.Lookup(fingerprint); ok {
		p.log.Debug("duplicate request", slog.String("request_id", req.RequestID), slog.String("analysis_id", id))
		return nil
	}

	res, err := p.pipeline.Analyze(&req.Input)
	if err != nil {
		return fmt.Errorf("analyze request: %w", err)
	}

	createdAt := parseTimestamp(req.SubmittedAt)
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	rec := models.NewRecord(user, res, createdAt)
	rec.Fingerprint = fingerprint

	if err := p.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	out := kafka.Message{
		Key:   []byte(rec.ID),
		Value: payload,
	}
	if req.RequestID != "" {
		out.Headers = append(out.Headers, kafka.Header{Key: "request_id", Value: []byte(req.RequestID)})
	}
	if err := p.results.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	p.cache.Remember(fingerprint, rec.ID)
	p.log.Info("analysis completed",
		slog.String("id", rec.ID),
		slog.String("request_id", req.RequestID),
		slog.String("language", string(rec.Language)),
		slog.Bool("fake", rec.IsFake),
		slog.Float64("probability", rec.Probability),
	)
	return nil
}

// deadLetter copies msg to the DLQ with the failure attached, retrying with
// backoff. It reports whether the write succeeded.
func deadLetter(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, backoff func(attempt int) time.Duration) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < dlqAttempts; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		wait := backoff(attempt)
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
