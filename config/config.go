package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Mpesa    MpesaConfig
	Firebase FirebaseConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int
	RateWindow   time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// MpesaConfig holds Daraja STK push credentials. When ConsumerKey is empty
// the server falls back to the sandbox provider.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string // e.g. https://api.fundi.co.ke/api/v1/payments/callback
	CallbackToken  string // optional shared secret expected as ?token= on callbacks
	Timeout        time.Duration
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type AdminConfig struct {
	Email    string
	Password string
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

// SignedCallbackURL is the URL registered with Daraja. When CallbackToken is
// set it is appended as ?token= so the callback route can check it.
func (m MpesaConfig) SignedCallbackURL() string {
	if m.CallbackToken == "" {
		return m.CallbackURL
	}
	u, err := url.Parse(m.CallbackURL)
	if err != nil {
		return m.CallbackURL
	}
	q := u.Query()
	q.Set("token", m.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
			RateLimit:    getInt("RATE_LIMIT", 100),
			RateWindow:   getDuration("RATE_WINDOW", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "fundi:fundi@tcp(localhost:3306)/fundi?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "fundi"),
		},
		Mpesa: MpesaConfig{
			BaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:      getEnv("MPESA_SHORTCODE", "174379"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    getEnv("MPESA_CALLBACK_URL", "http://localhost:8080/api/v1/payments/callback"),
			CallbackToken:  os.Getenv("MPESA_CALLBACK_TOKEN"),
			Timeout:        getDuration("MPESA_TIMEOUT", 30*time.Second),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
