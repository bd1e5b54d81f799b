package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanroute/routeview/internal/geo"
	"github.com/urbanroute/routeview/internal/route"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"routing": { "baseUrl": "http://routing:8000/" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))

	rc, err := GetRoutingConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://routing:8000", rc.BaseURL)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:8000", viper.GetString("routing.baseUrl"))
	assert.Equal(t, 30*time.Second, GetDuration("routing.timeout"))
	assert.Equal(t, int64(32<<20), viper.GetInt64("routing.maxBodyBytes"))
	assert.Equal(t, "A*", viper.GetString("routing.defaultAlgorithm"))
	assert.Equal(t, "distance", viper.GetString("routing.defaultVariable"))
	assert.Equal(t, 0.5, GetFloat64("routing.defaultWeight"))
	assert.Equal(t, 10, GetInt("map.zoom"))
	assert.Equal(t, ":8080", viper.GetString("server.listen"))
	assert.Equal(t, 256, viper.GetInt("dispatcher.queueSize"))
	assert.Equal(t, "none", viper.GetString("history.type"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "routeview", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(t.TempDir()))
	assert.Equal(t, "info", GetString("logLevel"))
}

func TestLoad_InvalidFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestBindFlags_OverrideFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"server": {"listen": ":9000"}}`)))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.listen", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--server.listen=:7000"}))
	require.NoError(t, BindFlags(flags))

	sc, err := GetServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", sc.Listen)
	assert.Equal(t, []string{"*"}, sc.AllowedOrigins)
}

func TestGetRoutingConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	rc, err := GetRoutingConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, rc.Timeout)
	assert.Equal(t, route.DefaultSelection(), rc.Selection)
}

func TestGetRoutingConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad url", `{"routing": {"baseUrl": "not a url"}}`},
		{"unknown algorithm", `{"routing": {"defaultAlgorithm": "dijkstra"}}`},
		{"unknown variable", `{"routing": {"defaultVariable": "noise"}}`},
		{"weight out of range", `{"routing": {"defaultWeight": 2}}`},
		{"zero body cap", `{"routing": {"maxBodyBytes": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))

			_, err := GetRoutingConfig()
			assert.Error(t, err)
		})
	}
}

func TestGetMapConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	mc, err := GetMapConfig()
	require.NoError(t, err)
	assert.Equal(t, geo.DefaultCenter, mc.Center)
	assert.Equal(t, geo.DefaultZoom, mc.Zoom)
	assert.InDelta(t, geo.BritishIsles.MinLongitude, mc.Bounds.MinLongitude, 1e-9)
	assert.InDelta(t, geo.BritishIsles.MaxLatitude, mc.Bounds.MaxLatitude, 1e-9)
}

func TestGetMapConfig_NoBounds(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"map": {"maxBounds": ""}}`)))

	mc, err := GetMapConfig()
	require.NoError(t, err)
	assert.True(t, mc.Bounds.IsZero())
}

func TestGetMapConfig_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"map": {"zoom": 40}}`)))

	_, err := GetMapConfig()
	assert.Error(t, err)
}

func TestGetHistoryConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"history": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/routes.db" }
		}
	}`)))

	hc, err := GetHistoryConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", hc.Type)
	assert.Equal(t, "/tmp/out", hc.Memory.OutputDir)
	assert.Equal(t, false, hc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/routes.db", hc.SQLite.Path)
}

func TestGetHistoryConfig_UnknownType(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"history": {"type": "mongo"}}`)))

	_, err := GetHistoryConfig()
	assert.Error(t, err)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(t.TempDir()))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "routeview", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, time.Minute, cfg.MetricInterval)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxAndGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "bucket": "fetches" },
		"graylog": { "enabled": true, "address": "graylog:12201" }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "fetches", ic.Bucket)
	assert.Equal(t, "routeview", ic.Org)

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "graylog:12201", gc.Address)
}
