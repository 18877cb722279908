package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docenhance/internal/correct"
	"docenhance/internal/job"
	"docenhance/internal/logger"
	"docenhance/internal/ocr"
)

type Config struct {
	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float32

	// OCR Configuration
	OCREngine             string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string
	TesseractLanguages    string

	// Pipeline Limits
	MaxDocumentBytes int
	MaxTextBytes     int
	MaxAttempts      int
	RetryBackoff     time.Duration
	RetryBudget      time.Duration
	TimeoutBase      time.Duration
	TimeoutPerMB     time.Duration
	TimeoutCeiling   time.Duration

	// Storage Configuration
	StorePath string

	// Notification Configuration
	NotifyURL string

	// Server Configuration
	ListenAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", ""),
		OpenAITemperature:     getEnvFloat32("OPENAI_TEMPERATURE", 0.1),
		OCREngine:             getEnv("OCR_ENGINE", ocr.EngineVision),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		TesseractLanguages:    getEnv("TESSERACT_LANGUAGES", "eng"),
		MaxDocumentBytes:      getEnvInt("MAX_DOCUMENT_BYTES", 10<<20),
		MaxTextBytes:          getEnvInt("MAX_TEXT_BYTES", 10<<20),
		MaxAttempts:           getEnvInt("MAX_ATTEMPTS", 3),
		RetryBackoff:          getEnvDuration("RETRY_BACKOFF", 2*time.Second),
		RetryBudget:           getEnvDuration("RETRY_BUDGET", 2*time.Minute),
		TimeoutBase:           getEnvDuration("TIMEOUT_BASE", 30*time.Second),
		TimeoutPerMB:          getEnvDuration("TIMEOUT_PER_MB", 5*time.Second),
		TimeoutCeiling:        getEnvDuration("TIMEOUT_CEILING", 60*time.Second),
		StorePath:             getEnv("STORE_PATH", ""),
		NotifyURL:             getEnv("NOTIFY_URL", ""),
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch c.OCREngine {
	case ocr.EngineVision, ocr.EngineTesseract:
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai engine")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai engine")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be one of %s, %s, %s",
			ocr.EngineVision, ocr.EngineDocumentAI, ocr.EngineTesseract)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetJobConfig returns the orchestrator policy from the main config
func (c *Config) GetJobConfig() job.Config {
	return job.Config{
		MaxDocumentBytes: c.MaxDocumentBytes,
		MaxTextBytes:     c.MaxTextBytes,
		MaxAttempts:      c.MaxAttempts,
		RetryBackoff:     c.RetryBackoff,
		RetryBudget:      c.RetryBudget,
		TimeoutBase:      c.TimeoutBase,
		TimeoutPerMB:     c.TimeoutPerMB,
		TimeoutCeiling:   c.TimeoutCeiling,
	}
}

// GetOCRConfig returns the extraction engine configuration from the main config
func (c *Config) GetOCRConfig() ocr.Config {
	return ocr.Config{
		Engine:      c.OCREngine,
		ProjectID:   c.GoogleCloudProject,
		Location:    c.GoogleCloudLocation,
		ProcessorID: c.DocumentAIProcessorID,
		Languages:   strings.Split(c.TesseractLanguages, ","),
	}
}

// GetCorrectConfig returns the correction configuration from the main config
func (c *Config) GetCorrectConfig() correct.Config {
	cfg := correct.DefaultConfig()
	if c.OpenAIModel != "" {
		cfg.Model = c.OpenAIModel
	}
	cfg.Temperature = c.OpenAITemperature
	cfg.MaxInputBytes = c.MaxTextBytes
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
