package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceDriver selects the transaction database driver.
type SourceDriver string

const (
	DriverPostgres SourceDriver = "postgres"
	DriverMySQL    SourceDriver = "mysql"
)

// StorageType controls the run-history storage backend.
type StorageType string

const (
	StorageSQLite StorageType = "sqlite"
	StorageMemory StorageType = "memory"
	StorageOff    StorageType = "off"
)

// Config contains all runtime configuration for the analytics engine.
type Config struct {
	// Core
	LogLevel   string
	ListenAddr string // daemon /metrics + /healthz listener

	// Transaction source
	SourceDriver  SourceDriver
	SourceDSN     string
	PaymentsTable string
	WindowDays    int // bounded recent window fetched per run

	// Model bundle
	BundlePath string

	// Run-history storage
	Storage        StorageType
	StoragePath    string
	StorageMaxRows int

	// Churn scoring
	ChurnMediumScore float64 // score >= this -> Medium
	ChurnHighScore   float64 // score >= this -> High
	ChurnLabelDays   float64 // recency beyond this labels a customer churned
	RiskLowProb      float64 // probability tier boundaries for ML churn
	RiskHighProb     float64

	// CLV projection
	CLVHorizonDays float64
	CLVDecayDays   float64

	// Revenue constraints
	RevenueCeiling      float64 // absolute ceiling per customer
	HistoricalSpendCap  float64 // multiple of total_spent
	NewCustomerSpendCap float64 // multiple of total_spent below NewCustomerTxns
	NewCustomerTxns     int
	InactiveAfterDays   float64
	InactivityHorizon   float64 // days until the inactivity factor bottoms out
	InactivityFloor     float64

	// Training
	MinTrainingSamples int
	SegmentClusters    int
	Contamination      float64

	// Monitoring
	AlertChurnScore  float64
	FailureRateAlert float64

	// Daemon
	RefreshInterval time.Duration
	RetrainInterval time.Duration // 0 disables scheduled retrain
}

// FileConfig is the optional YAML overlay, used for values that are
// awkward as env vars (DSNs, per-deployment business thresholds).
type FileConfig struct {
	Databases struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Table  string `yaml:"table"`
	} `yaml:"databases"`
	Thresholds struct {
		RevenueCeiling     *float64 `yaml:"revenue_ceiling"`
		MinTrainingSamples *int     `yaml:"min_training_samples"`
		SegmentClusters    *int     `yaml:"segment_clusters"`
		Contamination      *float64 `yaml:"contamination"`
	} `yaml:"thresholds"`
}

// Load parses env vars and returns a validated Config.
func Load() (Config, error) {
	cfg := Config{
		// Core
		LogLevel:   getEnvString("LOG_LEVEL", "info"),
		ListenAddr: getEnvString("LISTEN_ADDR", ":9184"),

		// Source
		SourceDriver:  SourceDriver(getEnvString("SOURCE_DRIVER", string(DriverMySQL))),
		SourceDSN:     getEnvString("SOURCE_DSN", ""),
		PaymentsTable: getEnvString("PAYMENTS_TABLE", "payments"),
		WindowDays:    getEnvInt("WINDOW_DAYS", 90),

		// Bundle
		BundlePath: getEnvString("BUNDLE_PATH", "data/models.json"),

		// Storage
		Storage:        StorageType(getEnvString("STORAGE", string(StorageSQLite))),
		StoragePath:    getEnvString("STORAGE_PATH", "data/fuelcast.sqlite"),
		StorageMaxRows: getEnvInt("STORAGE_MAX_ROWS", 3000),

		// Churn scoring
		ChurnMediumScore: getEnvFloat("CHURN_MEDIUM_SCORE", 35),
		ChurnHighScore:   getEnvFloat("CHURN_HIGH_SCORE", 60),
		ChurnLabelDays:   getEnvFloat("CHURN_LABEL_DAYS", 30),
		RiskLowProb:      getEnvFloat("RISK_LOW_PROB", 0.3),
		RiskHighProb:     getEnvFloat("RISK_HIGH_PROB", 0.7),

		// CLV
		CLVHorizonDays: getEnvFloat("CLV_HORIZON_DAYS", 180),
		CLVDecayDays:   getEnvFloat("CLV_DECAY_DAYS", 30),

		// Revenue constraints
		RevenueCeiling:      getEnvFloat("REVENUE_CEILING", 50_000_000),
		HistoricalSpendCap:  getEnvFloat("HISTORICAL_SPEND_CAP", 2.0),
		NewCustomerSpendCap: getEnvFloat("NEW_CUSTOMER_SPEND_CAP", 1.5),
		NewCustomerTxns:     getEnvInt("NEW_CUSTOMER_TXNS", 5),
		InactiveAfterDays:   getEnvFloat("INACTIVE_AFTER_DAYS", 30),
		InactivityHorizon:   getEnvFloat("INACTIVITY_HORIZON_DAYS", 180),
		InactivityFloor:     getEnvFloat("INACTIVITY_FLOOR", 0.1),

		// Training
		MinTrainingSamples: getEnvInt("MIN_TRAINING_SAMPLES", 50),
		SegmentClusters:    getEnvInt("SEGMENT_CLUSTERS", 8),
		Contamination:      getEnvFloat("CONTAMINATION", 0.05),

		// Monitoring
		AlertChurnScore:  getEnvFloat("ALERT_CHURN_SCORE", 60),
		FailureRateAlert: getEnvFloat("FAILURE_RATE_ALERT", 0.3),

		// Daemon
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		RetrainInterval: getEnvDuration("RETRAIN_INTERVAL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyFile overlays values from a YAML config file on top of the
// env-derived configuration. Missing keys leave env values untouched.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.Databases.Driver != "" {
		c.SourceDriver = SourceDriver(fc.Databases.Driver)
	}
	if fc.Databases.DSN != "" {
		c.SourceDSN = fc.Databases.DSN
	}
	if fc.Databases.Table != "" {
		c.PaymentsTable = fc.Databases.Table
	}
	if fc.Thresholds.RevenueCeiling != nil {
		c.RevenueCeiling = *fc.Thresholds.RevenueCeiling
	}
	if fc.Thresholds.MinTrainingSamples != nil {
		c.MinTrainingSamples = *fc.Thresholds.MinTrainingSamples
	}
	if fc.Thresholds.SegmentClusters != nil {
		c.SegmentClusters = *fc.Thresholds.SegmentClusters
	}
	if fc.Thresholds.Contamination != nil {
		c.Contamination = *fc.Thresholds.Contamination
	}

	return c.Validate()
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	switch c.SourceDriver {
	case DriverPostgres, DriverMySQL:
		// ok
	default:
		return fmt.Errorf("invalid SOURCE_DRIVER: %q (must be postgres|mysql)", c.SourceDriver)
	}

	switch c.Storage {
	case StorageSQLite, StorageMemory, StorageOff:
		// ok
	default:
		return fmt.Errorf("invalid STORAGE: %q (must be sqlite|memory|off)", c.Storage)
	}

	if c.StorageMaxRows < 100 {
		return fmt.Errorf("STORAGE_MAX_ROWS must be >= 100")
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("WINDOW_DAYS must be > 0")
	}
	if c.BundlePath == "" {
		return fmt.Errorf("BUNDLE_PATH must not be empty")
	}

	if c.ChurnMediumScore < 0 || c.ChurnMediumScore > 100 {
		return fmt.Errorf("CHURN_MEDIUM_SCORE must be in [0,100]")
	}
	if c.ChurnHighScore <= c.ChurnMediumScore || c.ChurnHighScore > 100 {
		return fmt.Errorf("CHURN_HIGH_SCORE must be in (CHURN_MEDIUM_SCORE,100]")
	}
	if c.ChurnLabelDays <= 0 {
		return fmt.Errorf("CHURN_LABEL_DAYS must be > 0")
	}
	if c.RiskLowProb <= 0 || c.RiskHighProb <= c.RiskLowProb || c.RiskHighProb > 1 {
		return fmt.Errorf("risk tiers must satisfy 0 < RISK_LOW_PROB < RISK_HIGH_PROB <= 1")
	}

	if c.CLVHorizonDays <= 0 || c.CLVDecayDays <= 0 {
		return fmt.Errorf("CLV horizons must be > 0")
	}

	if c.RevenueCeiling <= 0 {
		return fmt.Errorf("REVENUE_CEILING must be > 0")
	}
	if c.HistoricalSpendCap <= 0 || c.NewCustomerSpendCap <= 0 {
		return fmt.Errorf("spend caps must be > 0")
	}
	if c.NewCustomerSpendCap > c.HistoricalSpendCap {
		return fmt.Errorf("NEW_CUSTOMER_SPEND_CAP must be <= HISTORICAL_SPEND_CAP")
	}
	if c.InactiveAfterDays <= 0 || c.InactivityHorizon <= 0 {
		return fmt.Errorf("inactivity thresholds must be > 0")
	}
	if c.InactivityFloor <= 0 || c.InactivityFloor >= 1 {
		return fmt.Errorf("INACTIVITY_FLOOR must be in (0,1)")
	}

	if c.MinTrainingSamples < 10 {
		return fmt.Errorf("MIN_TRAINING_SAMPLES must be >= 10")
	}
	if c.SegmentClusters < 2 {
		return fmt.Errorf("SEGMENT_CLUSTERS must be >= 2")
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return fmt.Errorf("CONTAMINATION must be in (0,0.5)")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be > 0")
	}
	if c.RetrainInterval < 0 {
		return fmt.Errorf("RETRAIN_INTERVAL must be >= 0")
	}

	return nil
}

// Helper functions for parsing environment variables

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
