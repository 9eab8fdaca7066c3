package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/AfyaLink/AfyaDial/internal/api"
	"github.com/AfyaLink/AfyaDial/internal/genai"
	"github.com/AfyaLink/AfyaDial/internal/lockfile"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/session"
	"github.com/AfyaLink/AfyaDial/internal/store"
	"github.com/AfyaLink/AfyaDial/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for AfyaDial state data
	DefaultStateDir = "/var/lib/afyadial"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "afyadial.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A file-backed database means local state: hold the state directory lock
	// so two instances cannot corrupt it.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	storeOpts := buildStoreOptions(flags)
	sessionOpts := buildSessionOptions(flags)
	msgOpts := buildMessagingOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping AfyaDial with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "session", len(sessionOpts), "messaging", len(msgOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, sessionOpts, msgOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("AfyaDial failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("AfyaDial exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	RedisAddr    string
	RedisPass    string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
	OpenAIKey    string
	APIAddr      string
	ReminderCron string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	redisAddr    *string
	redisPass    *string
	twilioSID    *string
	twilioToken  *string
	twilioFrom   *string
	openaiKey    *string
	apiAddr      *string
	reminderCron *string
}

// initializeLogger sets up structured logging. Debug level is on by default
// and can be disabled with AFYADIAL_DEBUG=false.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("AFYADIAL_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("AFYADIAL_STATE_DIR"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		TwilioSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:   os.Getenv("TWILIO_FROM_NUMBER"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		ReminderCron: os.Getenv("REMINDER_CRON"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AFYADIAL_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Without a database URL, default to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AFYADIAL_STATE_DIR", config.StateDir,
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for AfyaDial data (overrides $AFYADIAL_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the record store (overrides $DATABASE_URL)"),
		redisAddr:    flag.String("redis-addr", config.RedisAddr, "Redis address for the session store (overrides $REDIS_ADDR)"),
		redisPass:    flag.String("redis-password", config.RedisPass, "Redis password (overrides $REDIS_PASSWORD)"),
		twilioSID:    flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID for SMS delivery (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:  flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:   flag.String("twilio-from-number", config.TwilioFrom, "Twilio sender number in E.164 form (overrides $TWILIO_FROM_NUMBER)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for question answering (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron schedule for the reminder sweep (overrides $REMINDER_CRON)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr_set", *flags.redisAddr != "",
		"twilioConfigured", *flags.twilioSID != "" && *flags.twilioToken != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory when the DSN still points at the
	// default SQLite location.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "sqlite" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStoreOptions constructs record store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring record store", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildSessionOptions constructs session store configuration options
func buildSessionOptions(flags Flags) []session.RedisOption {
	var sessionOpts []session.RedisOption
	if *flags.redisAddr != "" {
		sessionOpts = append(sessionOpts, session.WithRedisAddr(*flags.redisAddr))
		if *flags.redisPass != "" {
			sessionOpts = append(sessionOpts, session.WithRedisPassword(*flags.redisPass))
		}
		if db := util.ParseIntEnv("REDIS_DB", 0); db != 0 {
			sessionOpts = append(sessionOpts, session.WithRedisDB(db))
		}
	}
	return sessionOpts
}

// buildMessagingOptions constructs SMS notifier configuration options
func buildMessagingOptions(flags Flags) []messaging.TwilioOption {
	var msgOpts []messaging.TwilioOption
	if *flags.twilioSID != "" {
		msgOpts = append(msgOpts, messaging.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		msgOpts = append(msgOpts, messaging.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		msgOpts = append(msgOpts, messaging.WithFromNumber(*flags.twilioFrom))
	}
	return msgOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.reminderCron != "" {
		apiOpts = append(apiOpts, api.WithReminderCron(*flags.reminderCron))
	}
	return apiOpts
}
