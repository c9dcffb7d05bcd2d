// Defaults for every configuration section.
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Database:   DefaultDatabaseConfig(),
		Redis:      DefaultRedisConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Providers:  DefaultProvidersConfig(),
		Media:      DefaultMediaConfig(),
		Continuity: DefaultContinuityConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "reelflow",
		Password:        "",
		Name:            "reelflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "reelflow",
		SampleRate:   0.1,
	}
}

// DefaultProvidersConfig returns the default provider configuration.
// API keys are empty; providers without a key are not registered.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Runway: ProviderConfig{Timeout: 5 * time.Minute},
		Luma:   ProviderConfig{Timeout: 5 * time.Minute},
		Pika:   ProviderConfig{Timeout: 5 * time.Minute},
	}
}

// DefaultMediaConfig returns the default media service configuration.
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		BaseURL: "http://localhost:8090",
		Timeout: 2 * time.Minute,
	}
}

// DefaultContinuityConfig returns the default continuity store configuration.
func DefaultContinuityConfig() ContinuityConfig {
	return ContinuityConfig{
		DualWrite: true,
		CacheTTL:  2 * time.Minute,
	}
}
