package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/route"
)

// FileName is the config file looked up in the config directory.
const FileName = "routeview.cfg.json"

// RoutingConfig holds routing service settings
type RoutingConfig struct {
	BaseURL   string          `mapstructure:"baseUrl" validate:"required,url"`
	Timeout      time.Duration   `mapstructure:"timeout" validate:"gte=0"`
	MaxBodyBytes int64           `mapstructure:"maxBodyBytes" validate:"gt=0"`
	Selection    route.Selection `mapstructure:"-"`
}

// MapConfig holds the initial map view
type MapConfig struct {
	Center route.Endpoint
	Zoom   int `validate:"gte=0,lte=22"`
	Bounds geo.Bounds
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Listen         string   `mapstructure:"listen" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// MemoryConfig holds in-memory/JSON history settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite history settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig selects and configures the route history backend
type HistoryConfig struct {
	Type   string       `mapstructure:"type" validate:"oneof=none memory sqlite postgres"`
	Memory MemoryConfig `mapstructure:"memory"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Protocol string `mapstructure:"protocol"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Token    string `mapstructure:"token"`
	Org      string `mapstructure:"org"`
	Bucket   string `mapstructure:"bucket"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("routing.baseUrl", "http://localhost:8000")
	viper.SetDefault("routing.timeout", "30s")
	viper.SetDefault("routing.maxBodyBytes", 32<<20)
	viper.SetDefault("routing.defaultAlgorithm", string(route.DefaultAlgorithm))
	viper.SetDefault("routing.defaultVariable", string(route.DefaultVariable))
	viper.SetDefault("routing.defaultWeight", float64(route.DefaultWeight))

	viper.SetDefault("map.center", fmt.Sprintf("%v,%v", geo.DefaultCenter.Longitude, geo.DefaultCenter.Latitude))
	viper.SetDefault("map.zoom", geo.DefaultZoom)
	b := geo.BritishIsles
	viper.SetDefault("map.maxBounds", fmt.Sprintf("%v,%v,%v,%v", b.MinLongitude, b.MinLatitude, b.MaxLongitude, b.MaxLatitude))

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{"*"})

	viper.SetDefault("dispatcher.queueSize", 256)
	viper.SetDefault("monitor.interval", "30s")

	viper.SetDefault("history.type", "none")
	viper.SetDefault("history.memory.outputDir", "./history")
	viper.SetDefault("history.memory.compressOutput", true)
	viper.SetDefault("history.sqlite.path", "./routeview.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "routeview")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "routeview")
	viper.SetDefault("influx.bucket", "routing")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "routeview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is not an error; defaults and flags still apply.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// BindFlags makes command line flags override config file values. Flag
// names match config keys.
func BindFlags(flags *pflag.FlagSet) error {
	return viper.BindPFlags(flags)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

var validate = validator.New()

// GetRoutingConfig returns the routing service settings.
func GetRoutingConfig() (RoutingConfig, error) {
	cfg := RoutingConfig{
		BaseURL:      strings.TrimRight(viper.GetString("routing.baseUrl"), "/"),
		Timeout:      viper.GetDuration("routing.timeout"),
		MaxBodyBytes: viper.GetInt64("routing.maxBodyBytes"),
	}
	if err := validate.Struct(cfg); err != nil {
		return RoutingConfig{}, fmt.Errorf("routing: %w", err)
	}

	alg, err := route.ParseAlgorithm(viper.GetString("routing.defaultAlgorithm"))
	if err != nil {
		return RoutingConfig{}, fmt.Errorf("routing.defaultAlgorithm: %w", err)
	}
	v, err := route.ParseVariable(viper.GetString("routing.defaultVariable"))
	if err != nil {
		return RoutingConfig{}, fmt.Errorf("routing.defaultVariable: %w", err)
	}
	w := route.Weight(viper.GetFloat64("routing.defaultWeight"))
	if !w.Valid() {
		return RoutingConfig{}, fmt.Errorf("routing.defaultWeight: %v outside [0,1]", float64(w))
	}
	cfg.Selection = route.Selection{Algorithm: alg, Variable: v, Weight: w}
	return cfg, nil
}

// GetMapConfig returns the initial map view. An empty map.maxBounds
// disables the bounds check.
func GetMapConfig() (MapConfig, error) {
	center, err := geo.ParseEndpoint(viper.GetString("map.center"))
	if err != nil {
		return MapConfig{}, fmt.Errorf("map.center: %w", err)
	}
	cfg := MapConfig{Center: center, Zoom: viper.GetInt("map.zoom")}
	if raw := viper.GetString("map.maxBounds"); raw != "" {
		if cfg.Bounds, err = geo.ParseBounds(raw); err != nil {
			return MapConfig{}, fmt.Errorf("map.maxBounds: %w", err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return MapConfig{}, fmt.Errorf("map: %w", err)
	}
	return cfg, nil
}

// GetServerConfig returns the HTTP server settings.
func GetServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		Listen:         viper.GetString("server.listen"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
	}
	if err := validate.Struct(cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("server: %w", err)
	}
	return cfg, nil
}

// GetHistoryConfig returns the route history settings.
func GetHistoryConfig() (HistoryConfig, error) {
	cfg := HistoryConfig{
		Type: viper.GetString("history.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("history.memory.outputDir"),
			CompressOutput: viper.GetBool("history.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("history.sqlite.path"),
		},
	}
	if err := validate.Struct(cfg); err != nil {
		return HistoryConfig{}, fmt.Errorf("history: %w", err)
	}
	return cfg, nil
}

// GetDBConfig returns the PostgreSQL settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the Graylog settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
