package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config — полная конфигурация пайплайна миграции.
// Все значения приходят из .env/окружения; флаги CLI могут их переопределить.
type Config struct {
	Env         string
	Freshdesk   Freshdesk
	Octadesk    Octadesk
	DB          DB
	Attachments Attachments
}

// Freshdesk — параметры исходной helpdesk-системы
type Freshdesk struct {
	Domain     string
	APIKey     string
	PageSize   int
	MaxRetries int
}

// Octadesk — параметры целевой CRM (lookup и создание сущностей)
type Octadesk struct {
	BaseURL        string
	APIKey         string
	AgentEmail     string
	ContactCFKey   string
	OrgCFKey       string
	ChannelID      string
	TimeoutSeconds int
}

type DB struct {
	DatabaseURI string
	Migrations  string
	StatePath   string
}

// Attachments — политика сбора вложений
type Attachments struct {
	DownloadDir    string
	MaxAttachMB    int
	MinAttachKB    int
	IncludeInline  bool
	InlineScrape   bool
	SignatureBlock bool
}

// Load читает .env (если есть) и окружение. Отсутствие .env — не ошибка:
// на проде переменные приходят из окружения.
func Load(envFile string) *Config {
	_ = godotenv.Load(envFile)

	viper.AutomaticEnv()
	viper.SetDefault("app_env", EnvProd)
	viper.SetDefault("fd_page_size", 100)
	viper.SetDefault("fd_max_retries", 5)
	viper.SetDefault("octa_timeout", 60)
	viper.SetDefault("max_attach_mb", 15)
	viper.SetDefault("min_attach_kb", 5)
	viper.SetDefault("attach_signature_block", true)
	viper.SetDefault("state_path", "freshsync_state.db")
	viper.SetDefault("migrations_path", "migrations")

	cfg := &Config{
		Env: viper.GetString("app_env"),
		Freshdesk: Freshdesk{
			Domain:     viper.GetString("freshdesk_domain"),
			APIKey:     viper.GetString("freshdesk_api_key"),
			PageSize:   viper.GetInt("fd_page_size"),
			MaxRetries: viper.GetInt("fd_max_retries"),
		},
		Octadesk: Octadesk{
			BaseURL:        viper.GetString("octadesk_base_url"),
			APIKey:         viper.GetString("octadesk_api_key"),
			AgentEmail:     viper.GetString("octadesk_agent_email"),
			ContactCFKey:   viper.GetString("octa_contact_fresh_id_key"),
			OrgCFKey:       viper.GetString("octa_org_fresh_id_key"),
			ChannelID:      viper.GetString("octadesk_channel_id"),
			TimeoutSeconds: viper.GetInt("octa_timeout"),
		},
		DB: DB{
			DatabaseURI: viper.GetString("database_uri"),
			Migrations:  viper.GetString("migrations_path"),
			StatePath:   viper.GetString("state_path"),
		},
		Attachments: Attachments{
			DownloadDir:    viper.GetString("download_dir"),
			MaxAttachMB:    viper.GetInt("max_attach_mb"),
			MinAttachKB:    viper.GetInt("min_attach_kb"),
			IncludeInline:  viper.GetBool("include_inline_attachments"),
			InlineScrape:   viper.GetBool("include_html_inline_scrape"),
			SignatureBlock: viper.GetBool("attach_signature_block"),
		},
	}

	return cfg
}

// Validate проверяет обязательные параметры. Это единственная фатальная
// проверка во всём пайплайне: всё остальное деградирует мягко.
func (c *Config) Validate() error {
	var missing []string
	if c.Freshdesk.Domain == "" {
		missing = append(missing, "FRESHDESK_DOMAIN")
	}
	if c.Freshdesk.APIKey == "" {
		missing = append(missing, "FRESHDESK_API_KEY")
	}
	if c.DB.DatabaseURI == "" {
		missing = append(missing, "DATABASE_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("отсутствуют обязательные переменные: %s", strings.Join(missing, ", "))
	}
	return nil
}

// OctaLookupEnabled — lookup в целевой CRM включается только при полном
// наборе реквизитов; иначе резолвер не создаётся и маппинги остаются пустыми.
func (c *Config) OctaLookupEnabled() bool {
	return c.Octadesk.BaseURL != "" && c.Octadesk.APIKey != "" && c.Octadesk.AgentEmail != ""
}
