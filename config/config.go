package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	N8N          N8NConfig          `mapstructure:"n8n"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	CRM          CRMConfig          `mapstructure:"crm"`
	Tenant       TenantConfig       `mapstructure:"tenant"`
	Cloudflare   CloudflareConfig   `mapstructure:"cloudflare"`
	GoogleDrive  GoogleDriveConfig  `mapstructure:"google_drive"`
	OSS          OSSConfig          `mapstructure:"oss"`
	Admin        AdminConfig        `mapstructure:"admin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// PublicURL is used to build the n8n callback URL.
	PublicURL string `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	Path         string `mapstructure:"path"` // sqlite file
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled reports whether a redis host is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

const (
	QueueModeInline = "inline"
	QueueModeRedis  = "redis"
)

type QueueConfig struct {
	Mode          string `mapstructure:"mode"`
	GenerateQueue string `mapstructure:"generate_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// SubscriptionConfig maps tiers to the CRM tag keywords that grant them and
// their monthly generation limits.
type SubscriptionConfig struct {
	Tiers map[string]TierRule `mapstructure:"tiers"`
}

type TierRule struct {
	Keywords         []string `mapstructure:"keywords"`
	GenerationsLimit int      `mapstructure:"generations_limit"`
	DisplayName      string   `mapstructure:"display_name"`
	PriceCents       int64    `mapstructure:"price_cents"`
}

// Limit returns the configured generation limit for a tier (0 if unknown).
func (c SubscriptionConfig) Limit(tier string) int {
	if rule, ok := c.Tiers[tier]; ok {
		return rule.GenerationsLimit
	}
	return 0
}

type GenerationConfig struct {
	WorkflowTimeoutSeconds int    `mapstructure:"workflow_timeout_seconds"`
	PollIntervalSeconds    int    `mapstructure:"poll_interval_seconds"`
	PollMaxAttempts        int    `mapstructure:"poll_max_attempts"`
	ScriptConcurrency      int    `mapstructure:"script_concurrency"`
	ScriptDays             int    `mapstructure:"script_days"`
	CallbackPath           string `mapstructure:"callback_path"`
	CallbackSecret         string `mapstructure:"callback_secret"`
}

// WorkflowTimeout bounds the outbound n8n call.
func (c GenerationConfig) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutSeconds) * time.Second
}

// PollWindow is how long a client keeps polling before giving up.
func (c GenerationConfig) PollWindow() time.Duration {
	return time.Duration(c.PollIntervalSeconds*c.PollMaxAttempts) * time.Second
}

type N8NConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	AuthHeader string `mapstructure:"auth_header"`
	AuthToken  string `mapstructure:"auth_token"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type StripeConfig struct {
	SecretKey     string          `mapstructure:"secret_key"`
	WebhookSecret string          `mapstructure:"webhook_secret"`
	FrontendURL   string          `mapstructure:"frontend_url"`
	Currency      string          `mapstructure:"currency"`
	Packages      []PackageConfig `mapstructure:"packages"`
}

type PackageConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Generations int    `mapstructure:"generations"`
	PriceCents  int64  `mapstructure:"price_cents"`
	PriceID     string `mapstructure:"price_id"` // optional Stripe price, overrides price_cents
}

// Package looks up an add-on package by id.
func (c StripeConfig) Package(id string) (PackageConfig, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return PackageConfig{}, false
}

type CRMConfig struct {
	WebhookSecret   string `mapstructure:"webhook_secret"`
	DefaultPassword string `mapstructure:"default_password"`
}

type TenantConfig struct {
	BaseDomain    string `mapstructure:"base_domain"`
	DNSTarget     string `mapstructure:"dns_target"`
	EncryptionKey string `mapstructure:"encryption_key"` // age X25519 identity
}

type CloudflareConfig struct {
	APIToken string `mapstructure:"api_token"`
	ZoneID   string `mapstructure:"zone_id"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	APIKey          string `mapstructure:"api_key"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type AdminConfig struct {
	Emails []string `mapstructure:"emails"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	// config.local.yaml holds real secrets and is not committed
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the built-in defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.JWT.ExpireHours == 0 {
		c.JWT.ExpireHours = 24 * 7
	}
	if c.Queue.Mode == "" {
		c.Queue.Mode = QueueModeInline
	}
	if c.Queue.GenerateQueue == "" {
		c.Queue.GenerateQueue = "content_generate"
	}
	if c.Queue.MaxWorkers <= 0 {
		c.Queue.MaxWorkers = 4
	}
	if len(c.Subscription.Tiers) == 0 {
		c.Subscription.Tiers = DefaultTiers()
	}

	g := &c.Generation
	if g.WorkflowTimeoutSeconds <= 0 {
		g.WorkflowTimeoutSeconds = 600
	}
	if g.PollIntervalSeconds <= 0 {
		g.PollIntervalSeconds = 10
	}
	if g.PollMaxAttempts <= 0 {
		g.PollMaxAttempts = 60
	}
	if g.ScriptConcurrency <= 0 {
		g.ScriptConcurrency = 5
	}
	if g.ScriptDays <= 0 {
		g.ScriptDays = 30
	}
	if g.CallbackPath == "" {
		g.CallbackPath = "/api/content/callback"
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 600
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
}

// DefaultTiers mirrors the tag keywords the CRM uses for each product.
func DefaultTiers() map[string]TierRule {
	return map[string]TierRule{
		"free":      {GenerationsLimit: 0, DisplayName: "Free"},
		"basic":     {Keywords: []string{"basic", "$3"}, GenerationsLimit: 5, DisplayName: "Basic", PriceCents: 300},
		"pro":       {Keywords: []string{"pro", "27"}, GenerationsLimit: 15, DisplayName: "Pro", PriceCents: 2700},
		"unlimited": {Keywords: []string{"unlimited", "99"}, GenerationsLimit: 1000, DisplayName: "Unlimited", PriceCents: 9900},
	}
}
