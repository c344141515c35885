package models

import "time"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// LLMConfig configures the classification and extraction backend
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	BaseURL  string        `yaml:"baseURL"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PipelineConfig holds the profile pipeline policy switches
type PipelineConfig struct {
	// ClassifyNewProfiles gates profile creation for unknown senders on the classifier.
	ClassifyNewProfiles bool `yaml:"classifyNewProfiles"`
	// ClassifyMaxChars truncates the thread sent to the classifier, 0 sends all of it.
	ClassifyMaxChars int `yaml:"classifyMaxChars"`
}

// EmailConfig represents IMAP email configuration
type EmailConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Imap        string        `yaml:"imap"`
	Login       string        `yaml:"login"`
	Password    string        `yaml:"password"`
	RefreshTime time.Duration `yaml:"refreshTime"`
	MailBox     string        `yaml:"mailbox"`
	Lookback    time.Duration `yaml:"lookback"`
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
