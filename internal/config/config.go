package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Tenant      string
	Database    DatabaseConfig
	FaceService FaceServiceConfig
	Worker      WorkerConfig
	Thresholds  Thresholds
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FaceServiceConfig struct {
	URL      string  // defaults to http://localhost:8000
	MinScore float64 // detections below this confidence are dropped (default 0.30)
}

type WorkerConfig struct {
	Timeout       time.Duration // per-photo detection deadline (default 120s)
	RestartAfter  int           // photos per worker process before a voluntary restart (default 5)
	MemoryLimitMB int           // heap size that triggers a cleanup pass (default 600)
	MaxRestarts   int           // supervisor gives up after this many worker relaunches (default 100)
}

// Thresholds are the tunable cosine-distance cutoffs for clustering.
// Default applies when no user feedback exists, Tightened when any photo
// has been confirmed, Loosened when any photo has been excluded (and it
// wins when both kinds of feedback exist). AutoAssign is the stricter
// cutoff for folding a new unnamed cluster into a confirmed person.
type Thresholds struct {
	Clustering struct {
		Default   float64 `yaml:"default"`
		Tightened float64 `yaml:"tightened"`
		Loosened  float64 `yaml:"loosened"`
	} `yaml:"clustering"`
	AutoAssign float64 `yaml:"auto_assign"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var thresholds Thresholds
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}
	thresholds.Clustering.Default = envFloat("FACE_CLUSTER_THRESHOLD", thresholds.Clustering.Default)
	thresholds.AutoAssign = envFloat("FACE_AUTO_ASSIGN_THRESHOLD", thresholds.AutoAssign)

	return &Config{
		Tenant: envString("FACE_TENANT", "default"),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		FaceService: FaceServiceConfig{
			URL:      envString("FACE_SERVICE_URL", "http://localhost:8000"),
			MinScore: envFloat("FACE_MIN_SCORE", 0.30),
		},
		Worker: WorkerConfig{
			Timeout:       time.Duration(envInt("FACE_WORKER_TIMEOUT_SECONDS", 120)) * time.Second,
			RestartAfter:  envInt("FACE_WORKER_RESTART_AFTER", 5),
			MemoryLimitMB: envInt("FACE_WORKER_MEMORY_LIMIT_MB", 600),
			MaxRestarts:   envInt("FACE_WORKER_MAX_RESTARTS", 100),
		},
		Thresholds: thresholds,
	}
}
