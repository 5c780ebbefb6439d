package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvLocal is the only environment allowed to run without a configured JWT secret.
const EnvLocal = "local"

const placeholderJWTSecret = "change-me"

// ErrInsecureJWTSecret is returned outside the local environment when the JWT secret is
// unset or left at the placeholder value.
var ErrInsecureJWTSecret = errors.New("auth.jwt_secret (AUTH_JWT_SECRET) must be set to a non-default value")

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Redis      `yaml:"redis"`
	Auth       `yaml:"auth"`
	Analytics  `yaml:"analytics"`
	GeoIP      `yaml:"geoip"`
	Admin      `yaml:"admin"`
}

// HTTPServer holds listener settings shared by the admin and redirect binaries.
type HTTPServer struct {
	AdminAddress    string        `yaml:"admin_address" env:"ADMIN_HTTP_ADDRESS" env-default:":8080"`
	RedirectAddress string        `yaml:"redirect_address" env:"REDIRECT_HTTP_ADDRESS" env-default:":8081"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"ttemp"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
	LogQueries      bool   `yaml:"log_queries" env:"DB_LOG_QUERIES" env-default:"false"`
}

// Redis holds the optional link cache settings. An empty address disables the cache.
type Redis struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB          int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	LinkTTL     time.Duration `yaml:"link_ttl" env:"REDIS_LINK_TTL" env-default:"1h"`
	NegativeTTL time.Duration `yaml:"negative_ttl" env:"REDIS_NEGATIVE_TTL" env-default:"1m"`
}

// Auth holds admin authentication settings.
type Auth struct {
	JWTSecret      string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer         string        `yaml:"issuer" env:"AUTH_ISSUER" env-default:"ttemp-link"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"12h"`
	AllowSignup    bool          `yaml:"allow_signup" env:"AUTH_ALLOW_SIGNUP" env-default:"true"`
	BcryptCost     int           `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"12"`
	LoginRateLimit int           `yaml:"login_rate_limit" env:"AUTH_LOGIN_RATE_LIMIT" env-default:"10"`
}

// Analytics holds click pipeline settings.
type Analytics struct {
	AsyncRecording bool          `yaml:"async_recording" env:"ANALYTICS_ASYNC_RECORDING" env-default:"false"`
	Workers        int           `yaml:"workers" env:"ANALYTICS_WORKERS" env-default:"3"`
	BufferSize     int           `yaml:"buffer_size" env:"ANALYTICS_BUFFER_SIZE" env-default:"1000"`
	RetryAttempts  int           `yaml:"retry_attempts" env:"ANALYTICS_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"ANALYTICS_RETRY_DELAY" env-default:"500ms"`
	SettingsTTL    time.Duration `yaml:"settings_ttl" env:"ANALYTICS_SETTINGS_TTL" env-default:"30s"`
	UARegexesPath  string        `yaml:"ua_regexes_path" env:"ANALYTICS_UA_REGEXES_PATH"`
}

// GeoIP holds offline country database settings.
type GeoIP struct {
	LicenseKey           string        `yaml:"license_key" env:"MAXMIND_LICENSE_KEY"`
	EditionID            string        `yaml:"edition_id" env:"GEOIP_EDITION_ID" env-default:"GeoLite2-Country"`
	DownloadURL          string        `yaml:"download_url" env:"GEOIP_DOWNLOAD_URL" env-default:"https://download.maxmind.com/app/geoip_download"`
	RequestTimeout       time.Duration `yaml:"request_timeout" env:"GEOIP_REQUEST_TIMEOUT" env-default:"60s"`
	CheckInterval        time.Duration `yaml:"check_interval" env:"GEOIP_CHECK_INTERVAL" env-default:"1h"`
	VersionCheckInterval time.Duration `yaml:"version_check_interval" env:"GEOIP_VERSION_CHECK_INTERVAL" env-default:"1m"`
}

// Admin holds admin API specific settings.
type Admin struct {
	ShortBaseURL      string        `yaml:"short_base_url" env:"SHORT_BASE_URL" env-default:"http://localhost:8081"`
	PublicURL         string        `yaml:"public_url" env:"PUBLIC_ADMIN_APP_URL"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"ADMIN_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	TitleFetchTimeout time.Duration `yaml:"title_fetch_timeout" env:"TITLE_FETCH_TIMEOUT" env-default:"4s"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load reads CONFIG_PATH (default config/local.yml) when present and falls back to
// environment variables only.
func Load() (*Config, error) {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml"
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, err
		}
	} else {
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Env == EnvLocal {
		return nil
	}
	if secret := strings.TrimSpace(c.Auth.JWTSecret); secret == "" || secret == placeholderJWTSecret {
		return ErrInsecureJWTSecret
	}
	return nil
}
