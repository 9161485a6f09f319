// 包 config：集中读取环境变量（可由 .env 预置），启动时构造一次后只读
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	StoreBackend    string
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedFile     string
	SQLitePath      string
	RateLimitQPS    int
	Origin          OriginConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
}

type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DB           string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN：拼装 lib/pq 可用的连接串；用户名与密码按 URL 规则转义
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DB,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	switch {
	case p.Password != "":
		u.User = url.UserPassword(p.User, p.Password)
	case p.User != "":
		u.User = url.User(p.User)
	}
	return u.String()
}

// OriginConfig：源站锁定，仅放行受信网段与额外白名单的连接
type OriginConfig struct {
	Lock       bool
	AllowCIDRs []string
	AllowLocal bool
}

// RedisConfig：访问事件流（可选）
type RedisConfig struct {
	Enable       bool
	Host         string
	Port         string
	Pass         string
	DB           int
	Stream       string
	StreamMaxLen int64
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// LoadDotenv：按 .env、data/env/.env 顺序预置环境变量，已存在的变量不覆盖
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// Load：读取环境变量并校验；数值与时长解析失败时返回错误
func Load() (*Config, error) {
	c := &Config{
		Addr:        getEnv("ADDR", ":8080"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TrustedFile: getEnv("TRUSTED_PROXY_FILE", filepath.Join("data", "cf_ips.txt")),
		SQLitePath:  getEnv("SQLITE_PATH", filepath.Join("data", "page-counter.db")),
		Postgres: PostgresConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			User:     getEnv("PG_USER", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			DB:       getEnv("PG_DB", "page_counter"),
			SSLMode:  getEnv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:   getEnv("REDIS_HOST", "127.0.0.1"),
			Port:   getEnv("REDIS_PORT", "6379"),
			Pass:   os.Getenv("REDIS_PASS"),
			Stream: getEnv("REDIS_STREAM", "page-counter:visits"),
		},
	}
	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres))
	switch c.StoreBackend {
	case BackendPostgres, BackendSQLite:
	default:
		return nil, fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}

	var err error
	if c.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if c.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if c.Postgres.MaxOpenConns, err = getInt("PG_MAX_OPEN_CONNS", 50); err != nil {
		return nil, err
	}
	if c.Postgres.MaxIdleConns, err = getInt("PG_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	// 0 表示不限流
	if c.RateLimitQPS, err = getInt("RATE_LIMIT_QPS", 0); err != nil {
		return nil, err
	}
	if c.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	maxLen, err := getInt("REDIS_STREAM_MAXLEN", 100000)
	if err != nil {
		return nil, err
	}
	c.Redis.StreamMaxLen = int64(maxLen)
	c.Redis.Enable = os.Getenv("REDIS_ENABLE") == "true"
	c.Origin.Lock = os.Getenv("ORIGIN_LOCK_ENABLE") == "true"
	c.Origin.AllowLocal = os.Getenv("ORIGIN_ALLOW_LOCAL") == "true"
	c.Origin.AllowCIDRs = splitList(os.Getenv("ORIGIN_ALLOW_CIDRS"))
	return c, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// splitList：逗号分隔，忽略空项
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid non-negative integer %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
