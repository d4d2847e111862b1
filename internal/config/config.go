package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"squadron-stats/internal/constants"
)

type Config struct {
	DBPath           string
	SeasonsPath      string
	ReportDir        string
	ResolutionMode   string // interactive | auto-top | auto-create | auto-skip
	DefaultMatchType string
	FuzzyThreshold   float64
	AutoAcceptScore  float64
	KFactor          float64
	StartingRating   float64
	LogLevel         string
}

// Load reads configuration before the leveled application logger can
// exist, so it logs through a plain bootstrap logger of its own.
func Load() (*Config, error) {
	bootstrap := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		bootstrap.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "squadron.db"),
		SeasonsPath:      getEnv("SEASONS_PATH", "seasons.json"),
		ReportDir:        getEnv("REPORT_DIR", "reports"),
		ResolutionMode:   getEnv("RESOLUTION_MODE", "auto-top"),
		DefaultMatchType: getEnv("DEFAULT_MATCH_TYPE", "team"),
		FuzzyThreshold:   getEnvFloat("FUZZY_THRESHOLD", constants.FuzzyMatchThreshold),
		AutoAcceptScore:  getEnvFloat("AUTO_ACCEPT_SCORE", constants.AutoAcceptScore),
		KFactor:          getEnvFloat("K_FACTOR", constants.DefaultKFactor),
		StartingRating:   getEnvFloat("STARTING_RATING", constants.DefaultStartingRating),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	bootstrap.Info().
		Str("db_path", cfg.DBPath).
		Str("seasons_path", cfg.SeasonsPath).
		Str("report_dir", cfg.ReportDir).
		Str("resolution_mode", cfg.ResolutionMode).
		Float64("fuzzy_threshold", cfg.FuzzyThreshold).
		Float64("k_factor", cfg.KFactor).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
