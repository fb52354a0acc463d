// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Auth     AuthConfig     `yaml:"auth"`
	Password PasswordConfig `yaml:"password"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Janitor  JanitorConfig  `yaml:"janitor"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Store   time.Duration `yaml:"store" env:"STORE_TIMEOUT" env-default:"3s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH"`
	// TrustProxy — брать адрес клиента из X-Forwarded-For/X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

// GRPCConfig описывает сетевые настройки gRPC-сервера.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (g HTTPConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
// Ключи access и refresh обязаны различаться: утечка ключа access-токенов
// не должна позволять подделывать refresh-токены.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"JWT_ACCESS_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"hrm-auth"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"hrm-api"`
	Leeway          time.Duration `yaml:"leeway" env:"JWT_LEEWAY" env-default:"5s"`
}

// Validate проверяет согласованность параметров токенов.
func (a AuthConfig) Validate() error {
	switch {
	case a.AccessSecret == "" || a.RefreshSecret == "":
		return errors.New("auth: access and refresh secrets are required")
	case a.AccessSecret == a.RefreshSecret:
		return errors.New("auth: access and refresh secrets must differ")
	case a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0:
		return errors.New("auth: token ttl must be positive")
	case a.Leeway < 0:
		return errors.New("auth: leeway must not be negative")
	}

	return nil
}

// PasswordConfig — параметры хэширования паролей.
type PasswordConfig struct {
	Algorithm     string `yaml:"algorithm" env:"PASSWORD_ALGORITHM" env-default:"bcrypt"`
	BcryptCost    int    `yaml:"bcrypt_cost" env:"PASSWORD_BCRYPT_COST" env-default:"12"`
	MemoryKB      uint32 `yaml:"memory_kb" env:"PASSWORD_ARGON2_MEMORY_KB" env-default:"65536"`
	Time          uint32 `yaml:"time" env:"PASSWORD_ARGON2_TIME" env-default:"3"`
	Parallelism   uint8  `yaml:"parallelism" env:"PASSWORD_ARGON2_PARALLELISM" env-default:"2"`
	MaxConcurrent int    `yaml:"max_concurrent" env:"PASSWORD_MAX_CONCURRENT" env-default:"0"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL    string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"DB_MIGRATE_ON_START" env-default:"true"`
}

// RedisConfig — кэш отозванных семейств. Пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"hrm:auth:family:"`
}

// NATSConfig — публикация событий безопасности. Пустой URL отключает публикацию.
type NATSConfig struct {
	URL     string `yaml:"url" env:"NATS_URL"`
	Subject string `yaml:"subject" env:"NATS_SUBJECT" env-default:"hrm.auth.security"`
}

// TracingConfig — экспорт трейсов по OTLP/HTTP. Пустой endpoint отключает экспорт.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"hrm-auth"`
}

// JanitorConfig — периодическая очистка просроченных refresh-токенов.
type JanitorConfig struct {
	Period time.Duration `yaml:"period" env:"JANITOR_PERIOD" env-default:"30m"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %q: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)

	switch envPath := os.Getenv("CONFIG_PATH"); {
	case path != "":
		c, err = tryRead(path)
	case envPath != "":
		c, err = tryRead(envPath)
	default:
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			c, err = tryRead("local.yaml")
			break
		}

		if envErr := cleanenv.ReadEnv(&cfg); envErr != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", envErr)
		}
		c = &cfg
	}

	if err != nil {
		return nil, err
	}

	if err := c.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}
