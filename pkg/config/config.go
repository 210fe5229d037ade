package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CARDPOS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CARDPOS_DB_DSN"
	EnvDBHost = "CARDPOS_DB_HOST"
	EnvDBUser = "CARDPOS_DB_USER"
	EnvDBName = "CARDPOS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Ledger       LedgerConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Ops          OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARDPOS_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"CARDPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARDPOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARDPOS_DB_DSN"`
	Driver string `envconfig:"CARDPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDPOS_DB_USER"`
	LegacyPassword string `envconfig:"CARDPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDPOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// LedgerConfig carries ledger-wide defaults that are not per-store state.
type LedgerConfig struct {
	// SystemActorID is recorded on ledger entries created without an
	// explicit acting staff account (channel reconciliation, workers).
	SystemActorID string `envconfig:"CARDPOS_LEDGER_SYSTEM_ACTOR_ID" required:"true"`
}

func (l LedgerConfig) validate() error {
	if _, err := uuid.Parse(l.SystemActorID); err != nil {
		return fmt.Errorf("CARDPOS_LEDGER_SYSTEM_ACTOR_ID must be a uuid: %w", err)
	}
	return nil
}

// SystemActorUUID returns the parsed system actor id. Load guarantees it parses.
func (l LedgerConfig) SystemActorUUID() uuid.UUID {
	id, _ := uuid.Parse(l.SystemActorID)
	return id
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARDPOS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARDPOS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CARDPOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARDPOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ChannelStockTopic string `envconfig:"CARDPOS_PUBSUB_CHANNEL_STOCK_TOPIC" default:"cardpos-channel-stock"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARDPOS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARDPOS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARDPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// OpsConfig configures the operational HTTP listener (healthz, metrics).
type OpsConfig struct {
	Addr string `envconfig:"CARDPOS_OPS_ADDR" default:":9090"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
