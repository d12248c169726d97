package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrBucketNotSet is returned when no remote container has been configured.
var ErrBucketNotSet = errors.New("GCS_BUCKET is not set")

// Supported object store backends.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendMinIO = "minio"
	BackendSFTP  = "sftp"
	BackendLocal = "local"
)

// Config holds every runtime setting. Values come from, in increasing priority:
// defaults, the YAML file named by MEDIAFORGE_CONFIG, and the environment
// (including a .env file in the working directory).
type Config struct {
	Port          string `yaml:"port"`
	PublicBaseURL string `yaml:"public_url"`

	DataDir     string `yaml:"data_dir"`
	InboundDir  string `yaml:"inbound_dir"`
	OutboundDir string `yaml:"outbound_dir"`

	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`

	SignedURLExpiryMinutes int `yaml:"signed_url_expiration_minutes"`
	DeleteDelayMinutes     int `yaml:"delete_delay_minutes"`

	RetentionMaxAge  time.Duration `yaml:"retention_max_age"`
	ReclaimInterval  time.Duration `yaml:"reclaim_interval"`
	RecordMaxAge     time.Duration `yaml:"record_max_age"`
	TranscodeTimeout time.Duration `yaml:"transcode_timeout"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	RelaySecret    string   `yaml:"relay_secret"`

	GCS   GCSConfig   `yaml:"gcs"`
	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`
	SFTP  SFTPConfig  `yaml:"sftp"`
	Local LocalConfig `yaml:"local"`
}

type GCSConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	ServiceAccountEmail string `yaml:"service_account_email"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type SFTPConfig struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	PrivateKey string `yaml:"private_key"`
	Root       string `yaml:"root"`

	// HostKey is an authorized_keys line pinning the server key.
	HostKey        string `yaml:"host_key"`
	KnownHostsFile string `yaml:"known_hosts"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Port:                   "8000",
		DataDir:                "./data",
		InboundDir:             "./uploads",
		OutboundDir:            "./downloads",
		Backend:                BackendGCS,
		SignedURLExpiryMinutes: 10,
		DeleteDelayMinutes:     5,
		RetentionMaxAge:        time.Hour,
		ReclaimInterval:        30 * time.Minute,
		RecordMaxAge:           30 * 24 * time.Hour,
		TranscodeTimeout:       10 * time.Minute,
		LogLevel:               "info",
		RateLimit:              2,
		RateBurst:              10,
		MaxUploadBytes:         500 << 20,
		SFTP:                   SFTPConfig{Port: "22", Root: "/"},
		Local:                  LocalConfig{Root: "./objects"},
	}
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("MEDIAFORGE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
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

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "MEDIAFORGE_PORT")
	setString(&c.PublicBaseURL, "MEDIAFORGE_PUBLIC_URL")
	setString(&c.DataDir, "MEDIAFORGE_DATA_DIR")
	setString(&c.InboundDir, "MEDIAFORGE_INBOUND_DIR")
	setString(&c.OutboundDir, "MEDIAFORGE_OUTBOUND_DIR")
	setString(&c.Backend, "MEDIAFORGE_BACKEND")
	setString(&c.Bucket, "STORAGE_BUCKET")
	setString(&c.Bucket, "GCS_BUCKET")
	setString(&c.LogFile, "MEDIAFORGE_LOG_FILE")
	setString(&c.LogLevel, "MEDIAFORGE_LOG_LEVEL")
	setString(&c.RelaySecret, "MEDIAFORGE_RELAY_SECRET")

	if v := os.Getenv("MEDIAFORGE_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	setString(&c.GCS.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.GCS.ServiceAccountEmail, "GOOGLE_SERVICE_ACCOUNT_EMAIL")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&c.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.MinIO.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.SFTP.Host, "SFTP_HOST")
	setString(&c.SFTP.Port, "SFTP_PORT")
	setString(&c.SFTP.User, "SFTP_USER")
	setString(&c.SFTP.Password, "SFTP_PASSWORD")
	setString(&c.SFTP.PrivateKey, "SFTP_PRIVATE_KEY")
	setString(&c.SFTP.Root, "SFTP_ROOT")
	setString(&c.SFTP.HostKey, "SFTP_HOST_KEY")
	setString(&c.SFTP.KnownHostsFile, "SFTP_KNOWN_HOSTS")
	setString(&c.Local.Root, "LOCAL_STORE_ROOT")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.SignedURLExpiryMinutes, "SIGNED_URL_EXPIRATION_MINUTES"},
		{&c.DeleteDelayMinutes, "DELETE_DELAY_MINUTES"},
		{&c.RateBurst, "MEDIAFORGE_RATE_BURST"},
	}
	for _, it := range ints {
		if err := setInt(it.dst, it.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.RetentionMaxAge, "MEDIAFORGE_RETENTION_MAX_AGE"},
		{&c.ReclaimInterval, "MEDIAFORGE_RECLAIM_INTERVAL"},
		{&c.RecordMaxAge, "MEDIAFORGE_RECORD_MAX_AGE"},
		{&c.TranscodeTimeout, "MEDIAFORGE_TRANSCODE_TIMEOUT"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	bools := []struct {
		dst *bool
		key string
	}{
		{&c.S3.PathStyle, "S3_PATH_STYLE"},
		{&c.MinIO.UseSSL, "MINIO_USE_SSL"},
	}
	for _, b := range bools {
		if err := setBool(b.dst, b.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("MEDIAFORGE_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MEDIAFORGE_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v := os.Getenv("MEDIAFORGE_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MEDIAFORGE_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadBytes = n << 20
	}
	return nil
}

// Validate rejects settings the server cannot run with. A missing bucket is
// not checked here; RequireBucket reports it when the store is first opened.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGCS, BackendS3, BackendMinIO, BackendSFTP, BackendLocal:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if c.SignedURLExpiryMinutes <= 0 {
		return fmt.Errorf("SIGNED_URL_EXPIRATION_MINUTES must be positive, got %d", c.SignedURLExpiryMinutes)
	}
	if c.InboundDir == c.OutboundDir {
		return fmt.Errorf("inbound and outbound directories must differ")
	}
	if c.ReclaimInterval <= 0 || c.RetentionMaxAge <= 0 {
		return fmt.Errorf("retention max age and reclaim interval must be positive")
	}
	if c.TranscodeTimeout <= 0 {
		return fmt.Errorf("transcode timeout must be positive")
	}
	return nil
}

// RequireBucket returns the configured container or ErrBucketNotSet.
func (c *Config) RequireBucket() (string, error) {
	if c.Bucket == "" {
		return "", ErrBucketNotSet
	}
	return c.Bucket, nil
}

// SignedURLExpiry is the lifetime of issued upload and download URLs.
func (c *Config) SignedURLExpiry() time.Duration {
	return time.Duration(c.SignedURLExpiryMinutes) * time.Minute
}

// PublicURL is the externally reachable base URL of this server, used in
// relay links. It defaults to localhost on the configured port.
func (c *Config) PublicURL() string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	return "http://localhost:" + c.Port
}

// DeleteDelay is the wait before a stored output is removed. Negative values
// are treated as zero.
func (c *Config) DeleteDelay() time.Duration {
	if c.DeleteDelayMinutes < 0 {
		return 0
	}
	return time.Duration(c.DeleteDelayMinutes) * time.Minute
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
