package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host            string
	IngestPort      string
	HTTPPort        string
	StorageRoot     string
	StagingDir      string
	ModelPath       string
	LabelsPath      string
	OnnxLibraryPath string
	AnimalMin       float64
	HumanMin        float64
	FallbackMin     float64
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	MinPayloadBytes int64
	MaxWorkers      int
}

func (c *Config) IngestAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.IngestPort))
}

func (c *Config) HTTPAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.HTTPPort))
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		IngestPort:      getEnvOrDefault("INGEST_PORT", "5001"),
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "5000"),
		StorageRoot:     getEnvOrDefault("STORAGE_ROOT", "data/gallery"),
		StagingDir:      getEnvOrDefault("STAGING_DIR", "data/uploads"),
		ModelPath:       getEnvOrDefault("MODEL_PATH", "models/resnet18.onnx"),
		LabelsPath:      getEnvOrDefault("LABELS_PATH", "models/imagenet_classes.txt"),
		OnnxLibraryPath: getEnvOrDefault("ONNX_LIB_PATH", ""),
		AnimalMin:       parseFloatOrDefault("ANIMAL_MIN", 0.15),
		HumanMin:        parseFloatOrDefault("HUMAN_MIN", 0.10),
		FallbackMin:     parseFloatOrDefault("FALLBACK_MIN", 0.05),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", 2*time.Second),
		RequestTimeout:  parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MinPayloadBytes: parseIntOrDefault("MIN_PAYLOAD_BYTES", 1024),
		MaxWorkers:      int(parseIntOrDefault("MAX_WORKERS", 16)),
	}

	for name, port := range map[string]string{"INGEST_PORT": cfg.IngestPort, "HTTP_PORT": cfg.HTTPPort} {
		p, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid %s: %q", name, port)
		}
	}
	if cfg.StorageRoot == "" || cfg.StagingDir == "" {
		return nil, fmt.Errorf("STORAGE_ROOT and STAGING_DIR must be set")
	}
	for name, v := range map[string]float64{"ANIMAL_MIN": cfg.AnimalMin, "HUMAN_MIN": cfg.HumanMin, "FALLBACK_MIN": cfg.FallbackMin} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%s must be within [0,1] (got %v)", name, v)
		}
	}
	if cfg.IdleTimeout <= 0 || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got idle=%s, request=%s)", cfg.IdleTimeout, cfg.RequestTimeout)
	}
	if cfg.MinPayloadBytes < 0 {
		return nil, fmt.Errorf("MIN_PAYLOAD_BYTES must be >= 0 (got %d)", cfg.MinPayloadBytes)
	}
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("MAX_WORKERS must be > 0 (got %d)", cfg.MaxWorkers)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
