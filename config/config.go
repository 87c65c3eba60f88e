package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Path to the sqlite database file
	DatabasePath string `env:"DOSSIER_DB_PATH" envDefault:"database/dossiers.db"`

	// Directory scanned for dossier PDFs
	DossierDir string `env:"DOSSIER_DIR" envDefault:"dossiers_inmobiliarios"`

	// Destination of the Excel results workbook ("" disables the export)
	ReportPath string `env:"DOSSIER_REPORT_PATH" envDefault:"resultados_dossiers.xlsx"`

	// Port for the read-only API server
	ServerPort int `env:"SERVER_PORT" envDefault:"5250"`

	// Ingestion configuration
	Ingestion struct {
		// Number of concurrent upsert workers
		WorkerCount int `env:"INGEST_WORKER_COUNT" envDefault:"2"`

		// Buffer size of the document queue
		QueueSize int `env:"INGEST_QUEUE_SIZE" envDefault:"100"`

		// Maximum number of retries for conflicting upserts
		MaxRetries int `env:"INGEST_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"INGEST_RETRY_DELAY" envDefault:"5"`

		// Keep watching the dossier directory after the initial run
		Watch bool `env:"INGEST_WATCH" envDefault:"false"`

		// Minutes between scheduled ingestion runs in server mode
		IntervalMinutes int `env:"INGEST_INTERVAL_MINUTES" envDefault:"60"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
