package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DeafMist/truthguard/backend/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_RESULTS_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, config.BackendElasticsearch, cfg.StoreBackend)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "news_analyses", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "news_analysis_requests", cfg.KafkaTopic)
	require.Equal(t, "news_analysis_results", cfg.ResultsTopic)
	require.Equal(t, "truthguard-worker", cfg.KafkaConsumer)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/data/tg.db")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093,")
	t.Setenv("KAFKA_TOPIC", "in")
	t.Setenv("KAFKA_RESULTS_TOPIC", "out")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")
	t.Setenv("WORKER_COMMIT_INTERVAL", "5s")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, config.BackendSQLite, cfg.StoreBackend)
	require.Equal(t, "/data/tg.db", cfg.SQLitePath)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "in", cfg.KafkaTopic)
	require.Equal(t, "out", cfg.ResultsTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
	require.Equal(t, 5*time.Second, cfg.CommitInterval)
}

func TestLoadWorkerRejectsSameTopics(t *testing.T) {
	t.Setenv("KAFKA_TOPIC", "same")
	t.Setenv("KAFKA_RESULTS_TOPIC", "same")

	_, err := config.LoadWorker()
	require.ErrorContains(t, err, "KAFKA_RESULTS_TOPIC")
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("API_RATE_BURST", "4")
	t.Setenv("API_REQUEST_TIMEOUT", "5s")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, 2.5, cfg.RateLimit)
	require.Equal(t, 4, cfg.RateBurst)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIValidation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "page size above max", key: "API_PAGE_SIZE", val: "500"},
		{name: "zero rate", key: "API_RATE_LIMIT", val: "0"},
		{name: "negative burst", key: "API_RATE_BURST", val: "-1"},
		{name: "unknown backend", key: "STORE_BACKEND", val: "mongo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := config.LoadAPI()
			require.ErrorContains(t, err, tc.key)
		})
	}
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("RETENTION_SCHEDULE", "0 3 * * *")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, "0 3 * * *", cfg.Schedule)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
}

func TestLoadRetentionDefaults(t *testing.T) {
	t.Setenv("RETENTION_SCHEDULE", "")
	t.Setenv("RETENTION_MAX_AGE", "")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)
	require.Equal(t, "@daily", cfg.Schedule)
	require.Equal(t, 30*24*time.Hour, cfg.MaxAge)
}

func TestLoadRetentionRejectsBadSchedule(t *testing.T) {
	t.Setenv("RETENTION_SCHEDULE", "every tuesday")

	_, err := config.LoadRetention()
	require.ErrorContains(t, err, "RETENTION_SCHEDULE")
}

func TestLoadCLIReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ANALYZE_USER_ID=from-dotenv\nANALYZE_PERSIST=true\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() {
		_ = os.Unsetenv("ANALYZE_USER_ID")
		_ = os.Unsetenv("ANALYZE_PERSIST")
	})

	cfg, err := config.LoadCLI()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.UserID)
	require.True(t, cfg.Persist)
}

func TestLoadCLIEnvironmentWinsOverDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SQLITE_PATH=/from/file.db\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("SQLITE_PATH", "/from/env.db")

	cfg, err := config.LoadCLI()
	require.NoError(t, err)
	require.Equal(t, "/from/env.db", cfg.SQLitePath)
	require.Equal(t, "cli", cfg.UserID)
}
