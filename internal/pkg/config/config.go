package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Proximity ProximityConfig `mapstructure:"proximity"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	RateLimit    int `mapstructure:"rate_limit"` // requests per minute per client IP
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// TemporalConfig configures the detection workflow worker. When Enabled,
// asynchronous detection submissions start workflows instead of going
// through NATS.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Enabled   bool   `mapstructure:"enabled"`
}

// DetectorConfig points at the external defect classification service.
// An empty URL disables image submissions.
type DetectorConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PlaceConfig is a gazetteer entry.
type PlaceConfig struct {
	Name string  `mapstructure:"name"`
	Lat  float64 `mapstructure:"lat"`
	Lon  float64 `mapstructure:"lon"`
}

type ProximityConfig struct {
	MergeRadiusMeters   float64       `mapstructure:"merge_radius_meters"`
	NearbyRadiusMeters  float64       `mapstructure:"nearby_radius_meters"`
	NearbyLimit         int           `mapstructure:"nearby_limit"`
	NearbyMaxLimit      int           `mapstructure:"nearby_max_limit"`
	CorridorWidthMeters float64       `mapstructure:"corridor_width_meters"`
	UseIndex            bool          `mapstructure:"use_index"`
	Places              []PlaceConfig `mapstructure:"places"`
}

// Gazetteer returns the configured places, or nil to use the built-in list.
func (p ProximityConfig) Gazetteer() []domain.Place {
	if len(p.Places) == 0 {
		return nil
	}
	places := make([]domain.Place, len(p.Places))
	for i, pc := range p.Places {
		places[i] = domain.Place{Name: pc.Name, Location: domain.GeoPoint{Lat: pc.Lat, Lon: pc.Lon}}
	}
	return places
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "roadwatch")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "roadwatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "roadwatch:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "roadwatch-detections")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("detector.url", "")
	v.SetDefault("detector.timeout_seconds", 10)
	v.SetDefault("proximity.merge_radius_meters", 50)
	v.SetDefault("proximity.nearby_radius_meters", 5000)
	v.SetDefault("proximity.nearby_limit", 50)
	v.SetDefault("proximity.nearby_max_limit", 200)
	v.SetDefault("proximity.corridor_width_meters", 500)
	v.SetDefault("proximity.use_index", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROADWATCH_DATABASE_HOST → database.host
	v.SetEnvPrefix("ROADWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Proximity.MergeRadiusMeters <= 0 {
		errs = append(errs, "proximity.merge_radius_meters must be positive")
	}
	if c.Proximity.NearbyRadiusMeters < 0 || c.Proximity.CorridorWidthMeters < 0 {
		errs = append(errs, "proximity radii must not be negative")
	}
	if c.Proximity.NearbyLimit <= 0 || c.Proximity.NearbyLimit > c.Proximity.NearbyMaxLimit {
		errs = append(errs, fmt.Sprintf("proximity.nearby_limit must be 1-%d, got %d",
			c.Proximity.NearbyMaxLimit, c.Proximity.NearbyLimit))
	}
	for i, p := range c.Proximity.Places {
		if p.Name == "" || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			errs = append(errs, fmt.Sprintf("proximity.places[%d] needs a name and a valid lat/lon", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
