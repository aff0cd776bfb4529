package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"petscan/internal/imageload"
	"petscan/internal/logging"
	"petscan/internal/scan"

	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Classifier backends.
const (
	ClassifierDNN  = "dnn"
	ClassifierHTTP = "http"
)

// Config holds all application configuration
type Config struct {
	LibraryDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool
	IndexInterval   time.Duration
	ScanOnIndex     bool

	Scan scan.Config

	Classifier      string
	ModelPath       string
	ModelConfigPath string
	ClassifierURL   string
	ClassifierToken string
	ClassifierRPS   float64

	// Derived paths
	DatabasePath string
}

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	logging.Debug("Loaded environment from %s", path)
	return nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := LoadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.LibraryDir, err = filepath.Abs(config.LibraryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library directory path: %w", err)
	}
	logging.Info("  Library directory (absolute): %s", config.LibraryDir)

	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)
	config.DatabasePath = filepath.Join(config.DatabaseDir, "petscan.db")

	// A missing library is reported by the scan as an error, not fatal here
	if err := ensureDirectory(config.LibraryDir, "library"); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for catalog): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	return config, nil
}

// configFromEnv reads every setting without touching the filesystem.
func configFromEnv() (*Config, error) {
	location, err := loadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, err
	}

	defaults := scan.DefaultConfig()
	scanConfig := scan.Config{
		MaxPhotos:   getEnvInt("SCAN_MAX_PHOTOS", defaults.MaxPhotos),
		BatchSize:   getEnvInt("SCAN_BATCH_SIZE", defaults.BatchSize),
		Threshold:   getEnvFloat("SCAN_THRESHOLD", defaults.Threshold),
		Cooldown:    getEnvDuration("SCAN_COOLDOWN", defaults.Cooldown),
		TargetSize:  getEnvInt("SCAN_TARGET_SIZE", defaults.TargetSize),
		Quality:     imageload.QualityFast,
		AllowRemote: getEnvBool("SCAN_ALLOW_REMOTE", defaults.AllowRemote),
		ItemTimeout: getEnvDuration("SCAN_ITEM_TIMEOUT", defaults.ItemTimeout),
		Location:    location,
	}
	if scanConfig.Threshold < 0 || scanConfig.Threshold >= 1 {
		return nil, fmt.Errorf("SCAN_THRESHOLD must be in [0, 1), got %v", scanConfig.Threshold)
	}

	classifier := getEnv("CLASSIFIER", ClassifierDNN)
	config := &Config{
		LibraryDir:      getEnv("LIBRARY_DIR", "/photos"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
		IndexInterval:   getEnvDuration("INDEX_INTERVAL", 30*time.Minute),
		ScanOnIndex:     getEnvBool("SCAN_ON_INDEX", false),
		Scan:            scanConfig,
		Classifier:      classifier,
		ModelPath:       getEnv("MODEL_PATH", "./models/frozen_inference_graph.pb"),
		ModelConfigPath: getEnv("MODEL_CONFIG_PATH", "./models/ssd_mobilenet_v2_coco.pbtxt"),
		ClassifierURL:   getEnv("CLASSIFIER_URL", ""),
		ClassifierToken: getEnv("CLASSIFIER_TOKEN", ""),
		ClassifierRPS:   getEnvFloat("CLASSIFIER_RPS", 5),
	}

	switch classifier {
	case ClassifierDNN:
	case ClassifierHTTP:
		if config.ClassifierURL == "" {
			return nil, errors.New("CLASSIFIER_URL is required when CLASSIFIER=http")
		}
	default:
		return nil, fmt.Errorf("unknown CLASSIFIER %q (want %q or %q)", classifier, ClassifierDNN, ClassifierHTTP)
	}

	return config, nil
}

func logConfig(config *Config) {
	logging.Info("  LIBRARY_DIR:         %s", config.LibraryDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  INDEX_INTERVAL:      %s", config.IndexInterval)
	logging.Info("  SCAN_ON_INDEX:       %v", config.ScanOnIndex)
	logging.Info("  SCAN_MAX_PHOTOS:     %d", config.Scan.MaxPhotos)
	logging.Info("  SCAN_BATCH_SIZE:     %d", config.Scan.BatchSize)
	logging.Info("  SCAN_THRESHOLD:      %.2f", config.Scan.Threshold)
	logging.Info("  SCAN_COOLDOWN:       %s", config.Scan.Cooldown)
	logging.Info("  SCAN_TARGET_SIZE:    %d", config.Scan.TargetSize)
	logging.Info("  SCAN_ALLOW_REMOTE:   %v", config.Scan.AllowRemote)
	logging.Info("  TIMEZONE:            %s", config.Scan.Location)
	logging.Info("  CLASSIFIER:          %s", config.Classifier)
	if config.Classifier == ClassifierHTTP {
		logging.Info("  CLASSIFIER_URL:      %s", config.ClassifierURL)
		logging.Info("  CLASSIFIER_RPS:      %.1f", config.ClassifierRPS)
	} else {
		logging.Info("  MODEL_PATH:          %s", config.ModelPath)
		logging.Info("  MODEL_CONFIG_PATH:   %s", config.ModelConfigPath)
	}
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if name == "library" {
			return fmt.Errorf("directory does not exist")
		}
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
