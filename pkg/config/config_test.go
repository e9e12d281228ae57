package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"APP_NAME", "APP_ENVIRONMENT", "APP_DEBUG",
		"SERVER_HOST", "SERVER_PORT",
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_USER", "DATABASE_PASSWORD", "DATABASE_DBNAME",
		"REDIS_HOST", "REDIS_PORT",
		"KAFKA_ENABLED", "KAFKA_BROKERS",
		"GATEWAY_DEFAULT_BASE_URL", "GATEWAY_CALL_TIMEOUT",
		"POLLER_INTERVAL", "POLLER_FAILURE_GRACE",
		"JWT_SECRET",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.App.Name != "channel-connect" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "channel-connect")
	}

	if cfg.App.Environment != "development" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "development")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}

	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}

	if cfg.Gateway.CallTimeout != 5*time.Second {
		t.Errorf("Gateway.CallTimeout = %v, want %v", cfg.Gateway.CallTimeout, 5*time.Second)
	}

	if cfg.Poller.Interval != 3*time.Second {
		t.Errorf("Poller.Interval = %v, want %v", cfg.Poller.Interval, 3*time.Second)
	}

	if cfg.Poller.FailureGrace != 3 {
		t.Errorf("Poller.FailureGrace = %d, want %d", cfg.Poller.FailureGrace, 3)
	}

	if cfg.Kafka.Enabled {
		t.Error("Kafka.Enabled should default to false")
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	os.Setenv("APP_NAME", "test-app")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("DATABASE_HOST", "db.example.com")
	os.Setenv("POLLER_INTERVAL", "10s")
	defer func() {
		os.Unsetenv("APP_NAME")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("DATABASE_HOST")
		os.Unsetenv("POLLER_INTERVAL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.example.com")
	}

	if cfg.Poller.Interval != 10*time.Second {
		t.Errorf("Poller.Interval = %v, want %v", cfg.Poller.Interval, 10*time.Second)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"

	if dsn != expected {
		t.Errorf("DSN mismatch:\nExpected: %s\nGot: %s", expected, dsn)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := &RedisConfig{Host: "redis.local", Port: 6380}

	if addr := cfg.Addr(); addr != "redis.local:6380" {
		t.Errorf("Addr() = %q, want %q", addr, "redis.local:6380")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Name: "channel-connect", Environment: "development"},
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Host: "localhost", DBName: "channel_connect"},
			Gateway:  GatewayConfig{CallTimeout: 5 * time.Second},
			Poller:   PollerConfig{Interval: 3 * time.Second, FailureGrace: 3},
			JWT:      JWTConfig{Secret: "secret"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "missing database host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "zero gateway timeout", mutate: func(c *Config) { c.Gateway.CallTimeout = 0 }, wantErr: true},
		{name: "zero poller interval", mutate: func(c *Config) { c.Poller.Interval = 0 }, wantErr: true},
		{name: "zero failure grace", mutate: func(c *Config) { c.Poller.FailureGrace = 0 }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{
			name: "default jwt secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = "your-secret-key-change-in-production"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
