// Package config centraliza toda a configuração do serviço, carregada do
// ambiente (e opcionalmente de um .env em desenvolvimento).
package config

import (
	"fmt"

	"vendazap/internal/session"
	"vendazap/internal/whatsapp"

	"github.com/kelseyhightower/envconfig"
)

// DBConfig são os parâmetros de conexão do Postgres.
type DBConfig struct {
	Host     string `default:"localhost"`
	User     string `default:"postgres"`
	Password string `default:"postgres"`
	Name     string `default:"vendazap"`
	Port     string `default:"5432"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	TimeZone string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
}

// DSN monta a string de conexão no formato aceito pelo driver pgx do GORM.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

// OpenAIConfig configura o oráculo de intenção.
type OpenAIConfig struct {
	APIKey     string `envconfig:"API_KEY" required:"true"`
	Model      string `default:""`
	PromptPath string `split_words:"true" default:"prompts/system_prompt.txt"`
}

// BotConfig são os caminhos de dados locais do assistente.
type BotConfig struct {
	KnowledgePath string `split_words:"true" default:"data/knowledge.json"`
	SessionDir    string `split_words:"true" default:"data/sessions"`
}

// Config agrega a configuração completa do serviço.
type Config struct {
	Port string `default:"8080"`
	Env  string `default:"production"`

	DB       DBConfig
	Redis    session.RedisConfig
	WhatsApp whatsapp.Config `envconfig:"WHATSAPP"`
	OpenAI   OpenAIConfig    `envconfig:"OPENAI"`
	Bot      BotConfig
}

// Load lê a configuração do ambiente.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
