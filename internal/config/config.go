package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PolicyAlwaysImage = "always_image"
	PolicyFailFast    = "fail_fast"
)

type Config struct {
	// OpenAI-compatible image and vision API
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ImageModel    string
	VisionModel   string
	ImageSize     string
	ImageQuality  string
	EditTimeout   time.Duration
	VisionTimeout time.Duration

	// Render policy
	RenderPolicy      string
	MaxAttempts       int
	MaxConcurrentJobs int
	OutboundRPS       float64
	OutboundBurst     int

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Database
	DatabaseURL string

	// Server
	Port           string
	Environment    string
	LogLevel       string
	MaxUploadBytes int64
}

// Load reads the configuration from the environment. When CONFIG_FILE names
// a YAML file its keys (lower-cased variable names) fill in anything the
// environment leaves unset.
func Load() (*Config, error) {
	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return load(lookup(file))
}

func load(get func(string) string) (*Config, error) {
	l := loader{get: get}
	cfg := &Config{
		OpenAIAPIKey:  l.getString("OPENAI_API_KEY", ""),
		OpenAIBaseURL: l.getString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ImageModel:    l.getString("IMAGE_MODEL", "gpt-image-1"),
		VisionModel:   l.getString("VISION_MODEL", "gpt-4o"),
		ImageSize:     l.getString("IMAGE_SIZE", "1024x1024"),
		ImageQuality:  l.getString("IMAGE_QUALITY", "high"),
		EditTimeout:   l.getDuration("EDIT_TIMEOUT", 120*time.Second),
		VisionTimeout: l.getDuration("VISION_TIMEOUT", 60*time.Second),

		RenderPolicy:      strings.ToLower(l.getString("RENDER_POLICY", PolicyAlwaysImage)),
		MaxAttempts:       l.getInt("RENDER_MAX_ATTEMPTS", 0),
		MaxConcurrentJobs: l.getInt("MAX_CONCURRENT_JOBS", 4),
		OutboundRPS:       l.getFloat("OUTBOUND_RPS", 2),
		OutboundBurst:     l.getInt("OUTBOUND_BURST", 4),

		SupabaseURL:           l.getString("SUPABASE_URL", ""),
		SupabaseServiceKey:    l.getString("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseStorageBucket: l.getString("SUPABASE_STORAGE_BUCKET", "floorplan-renders"),

		DatabaseURL: l.getString("DATABASE_URL", ""),

		Port:           l.getString("PORT", "8080"),
		Environment:    l.getString("ENVIRONMENT", "development"),
		LogLevel:       l.getString("LOG_LEVEL", "info"),
		MaxUploadBytes: int64(l.getInt("MAX_UPLOAD_BYTES", 20<<20)),
	}

	if l.err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", l.err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the server cannot run with. A missing AI
// credential or Supabase project only disables the features that need them.
func (c *Config) Validate() error {
	switch c.RenderPolicy {
	case PolicyAlwaysImage, PolicyFailFast:
	default:
		return fmt.Errorf("RENDER_POLICY must be %s or %s, got %q", PolicyAlwaysImage, PolicyFailFast, c.RenderPolicy)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("RENDER_MAX_ATTEMPTS must not be negative")
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.EditTimeout <= 0 || c.VisionTimeout <= 0 {
		return fmt.Errorf("EDIT_TIMEOUT and VISION_TIMEOUT must be positive")
	}
	if c.OutboundRPS < 0 || c.OutboundBurst < 0 {
		return fmt.Errorf("OUTBOUND_RPS and OUTBOUND_BURST must not be negative")
	}
	if (c.SupabaseURL == "") != (c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY must be set together")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func lookup(file map[string]string) func(string) string {
	return func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return file[key]
	}
}

type loader struct {
	get func(string) string
	err error
}

func (l *loader) getString(key, defaultValue string) string {
	if value := l.get(key); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) getInt(key string, defaultValue int) int {
	value := l.get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.fail(key, err)
		return defaultValue
	}
	return n
}

func (l *loader) getFloat(key string, defaultValue float64) float64 {
	value := l.get(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		l.fail(key, err)
		return defaultValue
	}
	return f
}

// getDuration accepts Go duration strings or a plain number of seconds.
func (l *loader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := l.get(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.fail(key, err)
		return defaultValue
	}
	return d
}

func (l *loader) fail(key string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("%s: %w", key, err)
	}
}
