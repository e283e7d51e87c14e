package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Proctoring ProctoringConfig `mapstructure:"proctoring"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	AssessmentsFile string `mapstructure:"assessments_file"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// RedisConfig holds the optional plagiarism-cache connection settings.
// An empty address disables caching entirely.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ProctoringConfig is the policy table for the integrity engine. These are
// policy values, not constants: institutions tune them without a rebuild.
type ProctoringConfig struct {
	SeverityWeightLow    float64 `mapstructure:"severity_weight_low"`
	SeverityWeightMedium float64 `mapstructure:"severity_weight_medium"`
	SeverityWeightHigh   float64 `mapstructure:"severity_weight_high"`

	// From the Nth occurrence of the same event type within a session, the
	// severity weight is multiplied; each single event's penalty is capped.
	RepetitionThreshold  int     `mapstructure:"repetition_threshold"`
	RepetitionMultiplier float64 `mapstructure:"repetition_multiplier"`
	EventPenaltyCap      float64 `mapstructure:"event_penalty_cap"`

	PlagiarismPenaltyCap  float64 `mapstructure:"plagiarism_penalty_cap"`
	PlagiarismFloor       float64 `mapstructure:"plagiarism_floor"`
	PlagiarismHardCeiling float64 `mapstructure:"plagiarism_hard_ceiling"`
	TypingPenaltyCap      float64 `mapstructure:"typing_penalty_cap"`
	TypingFloor           float64 `mapstructure:"typing_floor"`

	ReviewThreshold float64 `mapstructure:"review_threshold"`

	MinTextLength      int `mapstructure:"min_text_length"`
	MinKeystrokeSample int `mapstructure:"min_keystroke_sample"`

	FrameQueueDepth    int           `mapstructure:"frame_queue_depth"`
	FrameWindow        time.Duration `mapstructure:"frame_window"`
	FrameMinSamples    int           `mapstructure:"frame_min_samples"`
	NoFaceThreshold    float64       `mapstructure:"no_face_threshold"`
	MultiFaceThreshold float64       `mapstructure:"multi_face_threshold"`

	FrameAnalysisTimeout time.Duration `mapstructure:"frame_analysis_timeout"`
	PlagiarismTimeout    time.Duration `mapstructure:"plagiarism_timeout"`
	TypingTimeout        time.Duration `mapstructure:"typing_timeout"`

	AnalysisWorkers    int           `mapstructure:"analysis_workers"`
	DefaultMaxDuration time.Duration `mapstructure:"default_max_duration"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.assessments_file", "config/assessments.yaml")

	// Database defaults
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "proctor-db")

	// Redis defaults (disabled unless an address is configured)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 15*time.Minute)

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Proctoring policy defaults
	v.SetDefault("proctoring.severity_weight_low", 1.0)
	v.SetDefault("proctoring.severity_weight_medium", 5.0)
	v.SetDefault("proctoring.severity_weight_high", 15.0)
	v.SetDefault("proctoring.repetition_threshold", 3)
	v.SetDefault("proctoring.repetition_multiplier", 2.0)
	v.SetDefault("proctoring.event_penalty_cap", 30.0)
	v.SetDefault("proctoring.plagiarism_penalty_cap", 40.0)
	v.SetDefault("proctoring.plagiarism_floor", 0.3)
	v.SetDefault("proctoring.plagiarism_hard_ceiling", 0.85)
	v.SetDefault("proctoring.typing_penalty_cap", 20.0)
	v.SetDefault("proctoring.typing_floor", 0.5)
	v.SetDefault("proctoring.review_threshold", 50.0)
	v.SetDefault("proctoring.min_text_length", 50)
	v.SetDefault("proctoring.min_keystroke_sample", 20)
	v.SetDefault("proctoring.frame_queue_depth", 32)
	v.SetDefault("proctoring.frame_window", time.Minute)
	v.SetDefault("proctoring.frame_min_samples", 10)
	v.SetDefault("proctoring.no_face_threshold", 0.30)
	v.SetDefault("proctoring.multi_face_threshold", 0.20)
	v.SetDefault("proctoring.frame_analysis_timeout", 200*time.Millisecond)
	v.SetDefault("proctoring.plagiarism_timeout", 2*time.Second)
	v.SetDefault("proctoring.typing_timeout", 300*time.Millisecond)
	v.SetDefault("proctoring.analysis_workers", 4)
	v.SetDefault("proctoring.default_max_duration", time.Hour)
	v.SetDefault("proctoring.sweep_interval", time.Minute)
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("PROCTOR") // e.g., PROCTOR_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
		}
	})

	log.Info("Configuration loaded successfully")
	return nil
}
