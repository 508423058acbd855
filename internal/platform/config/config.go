package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the YAML file to load, if any.
const EnvConfigPath = "AUTHSERVER_CONFIG"

const devSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Server ServerConfig `yaml:"server"`

	JWT struct {
		SigningKey       string `yaml:"signing_key"`
		RSAKeyPath       string `yaml:"rsa_key_path"`
		DefaultAlgorithm string `yaml:"default_algorithm"`
	} `yaml:"jwt"`

	// Redis backs the granted-token store when URL is set.
	Redis RedisConfig `yaml:"redis"`

	// Database backs the consent repository and audit log when DSN is set.
	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		Migrate         bool          `yaml:"migrate"`
	} `yaml:"database"`

	OpenBanking struct {
		Enabled          bool   `yaml:"enabled"`
		ConsentClaimName string `yaml:"consent_claim_name"`
		AccountsScope    string `yaml:"accounts_scope"`
		// Consents seed the consent repository, mainly for in-memory runs.
		Consents []Consent `yaml:"consents"`
	} `yaml:"openbanking"`

	RequestObject struct {
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"request_object"`

	ClientCache struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"client_cache"`

	Audit struct {
		Buffer int `yaml:"buffer"`
	} `yaml:"audit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// Clients and Users seed the in-memory registries in development.
	Clients []Client `yaml:"clients"`
	Users   []User   `yaml:"users"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Issuer          string        `yaml:"issuer"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Client struct {
	ID                     string   `yaml:"id"`
	Secret                 string   `yaml:"secret"`
	RedirectURIs           []string `yaml:"redirect_uris"`
	Scopes                 []string `yaml:"scopes"`
	AuthMethod             string   `yaml:"auth_method"`
	TLSClientAuthSubjectDN string   `yaml:"tls_client_auth_subject_dn"`
	CertificateThumbprints []string `yaml:"certificate_thumbprints"`
	SigningAlgorithm       string   `yaml:"signing_algorithm"`
}

type Consent struct {
	ID          string   `yaml:"id"`
	ClientID    string   `yaml:"client_id"`
	Subject     string   `yaml:"subject"`
	Permissions []string `yaml:"permissions"`
	// Status defaults to AwaitingAuthorisation.
	Status string `yaml:"status"`
}

type User struct {
	Subject string            `yaml:"subject"`
	Claims  map[string]string `yaml:"claims"`
}

// Default returns a configuration that runs locally with in-memory stores.
func Default() *Config {
	c := &Config{}
	c.Server.Addr = ":8080"
	c.Server.Issuer = "http://localhost:8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.JWT.SigningKey = devSigningKey
	c.JWT.DefaultAlgorithm = "HS256"
	c.Redis.PoolSize = 10
	c.Redis.DialTimeout = 5 * time.Second
	c.Redis.ReadTimeout = 3 * time.Second
	c.Redis.WriteTimeout = 3 * time.Second
	c.Database.MaxOpenConns = 10
	c.Database.MaxIdleConns = 5
	c.Database.ConnMaxLifetime = 30 * time.Minute
	c.OpenBanking.ConsentClaimName = "openbanking_intent_id"
	c.OpenBanking.AccountsScope = "accounts"
	c.RequestObject.FetchTimeout = 5 * time.Second
	c.ClientCache.TTL = 5 * time.Minute
	c.Audit.Buffer = 256
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// Load reads an optional .env file, then the YAML file named by
// AUTHSERVER_CONFIG, then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path over the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "AUTHSERVER_ADDR")
	setString(&c.Server.Issuer, "AUTHSERVER_ISSUER")
	setString(&c.JWT.SigningKey, "JWT_SIGNING_KEY")
	setString(&c.JWT.RSAKeyPath, "JWT_RSA_KEY_PATH")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.OpenBanking.ConsentClaimName, "OPENBANKING_CONSENT_CLAIM")

	if err := setBool(&c.OpenBanking.Enabled, "REGULATED_MODE"); err != nil {
		return err
	}
	if err := setBool(&c.Database.Migrate, "DATABASE_MIGRATE"); err != nil {
		return err
	}
	if err := setDuration(&c.RequestObject.FetchTimeout, "REQUEST_OBJECT_FETCH_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.ClientCache.TTL, "CLIENT_CACHE_TTL")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.Issuer == "" {
		return errors.New("server.issuer is required")
	}
	if c.JWT.SigningKey == "" && c.JWT.RSAKeyPath == "" {
		return errors.New("jwt.signing_key or jwt.rsa_key_path is required")
	}
	if c.RequestObject.FetchTimeout <= 0 {
		return errors.New("request_object.fetch_timeout must be positive")
	}
	if c.OpenBanking.Enabled && (c.OpenBanking.ConsentClaimName == "" || c.OpenBanking.AccountsScope == "") {
		return errors.New("openbanking requires consent_claim_name and accounts_scope")
	}
	for i, cl := range c.Clients {
		if cl.ID == "" || len(cl.RedirectURIs) == 0 || len(cl.Scopes) == 0 {
			return fmt.Errorf("clients[%d]: id, redirect_uris and scopes are required", i)
		}
		if cl.AuthMethod == "self_signed_tls_client_auth" && len(cl.CertificateThumbprints) == 0 {
			return fmt.Errorf("clients[%d]: self_signed_tls_client_auth requires certificate_thumbprints", i)
		}
	}
	for i, cs := range c.OpenBanking.Consents {
		if cs.ID == "" || cs.ClientID == "" || len(cs.Permissions) == 0 {
			return fmt.Errorf("openbanking.consents[%d]: id, client_id and permissions are required", i)
		}
	}
	return nil
}

// UsesDevSigningKey reports whether the built-in development key is in use.
func (c *Config) UsesDevSigningKey() bool {
	return c.JWT.SigningKey == devSigningKey
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
