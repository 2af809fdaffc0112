package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del ledger.
type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// LedgerConfig controla la política del settlement engine.
type LedgerConfig struct {
	MinStake        uint64 `yaml:"min_stake"`         // suelo anti-polvo
	GracePeriodDays int    `yaml:"grace_period_days"` // ventana tras el deadline antes de abrir refunds
	Authority       string `yaml:"authority"`         // identidad autorizada para admin ops
	CustodyAccount  string `yaml:"custody_account"`   // cuenta del pool en el ledger de custodia
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite | postgres
	DSN    string `yaml:"dsn"`    // ruta SQLite / ":memory:" / DSN de Postgres
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env
// si existe. Los valores del .env sobreescriben los del YAML para las
// keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// GracePeriod devuelve la ventana de gracia como time.Duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Ledger.GracePeriodDays) * 24 * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si
// están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LEDGER_AUTHORITY"); v != "" {
		cfg.Ledger.Authority = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores
// sensatos.
func setDefaults(cfg *Config) {
	if cfg.Ledger.MinStake == 0 {
		cfg.Ledger.MinStake = 1000
	}
	if cfg.Ledger.GracePeriodDays <= 0 {
		cfg.Ledger.GracePeriodDays = 30
	}
	if cfg.Ledger.CustodyAccount == "" {
		cfg.Ledger.CustodyAccount = "escrow"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "betledger.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
