package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort   string
	JWTSecret string
	BaseURL   string

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Gin framework configuration
	GinMode string
	GinPath string

	// Storage layout and limits
	UploadRoot              string
	AvatarDir               string
	QuotaBytes              int64
	MaxUploadBytes          int64
	MaxAvatarBytes          int64
	AllowedExtensions       []string
	AllowedAvatarExtensions []string

	// Admin key-file verification
	AdminKeyDir         string
	AdminKeyFilename    string
	AdminSessionMinutes int

	// Sharing
	ShareDefaultHours int

	// Registration security
	RegisterCaptchaEnabled bool
	RateLimitPerMinute     int
	AllowedOrigins         []string

	// GitHub OAuth login (optional)
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectBase  string

	// SMTP for confirmation mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	// Mailbox receiving contact-form submissions; empty disables forwarding.
	ContactRecipient string

	// Redis for caching/cooldowns/token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// AdminKeyPath returns the full path of the reference admin key file.
func (c AppConfig) AdminKeyPath() string {
	return filepath.Join(c.AdminKeyDir, c.AdminKeyFilename)
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTesting installs a configuration for tests and marks it loaded.
func SetForTesting(c AppConfig) {
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	dec := json.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			case json.Number:
				i, _ := t.Int64()
				return int(i)
			}
		}
		return 0
	}
	getInt64 := func(m map[string]any, key string) int64 {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int64(t)
			case int:
				return int64(t)
			case json.Number:
				i, _ := t.Int64()
				return i
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.BaseURL = getString(app, "BaseURL")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		out.RegisterCaptchaEnabled = getBool(app, "RegisterCaptchaEnabled")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if st, ok := raw["storage"].(map[string]any); ok {
		out.UploadRoot = getString(st, "UploadRoot")
		out.AvatarDir = getString(st, "AvatarDir")
		if v := getInt64(st, "QuotaBytes"); v != 0 {
			out.QuotaBytes = v
		}
		if v := getInt64(st, "MaxUploadBytes"); v != 0 {
			out.MaxUploadBytes = v
		}
		if v := getInt64(st, "MaxAvatarBytes"); v != 0 {
			out.MaxAvatarBytes = v
		}
		if list := getStringSlice(st, "AllowedExtensions"); len(list) > 0 {
			out.AllowedExtensions = list
		}
		if list := getStringSlice(st, "AllowedAvatarExtensions"); len(list) > 0 {
			out.AllowedAvatarExtensions = list
		}
	}

	if adm, ok := raw["admin"].(map[string]any); ok {
		out.AdminKeyDir = getString(adm, "KeyDir")
		out.AdminKeyFilename = getString(adm, "KeyFilename")
		if v := getInt(adm, "SessionMinutes"); v != 0 {
			out.AdminSessionMinutes = v
		}
	}

	if sh, ok := raw["share"].(map[string]any); ok {
		if v := getInt(sh, "DefaultHours"); v != 0 {
			out.ShareDefaultHours = v
		}
	}

	if oa, ok := raw["oauth"].(map[string]any); ok {
		out.GitHubClientID = getString(oa, "GitHubClientID")
		out.GitHubClientSecret = getString(oa, "GitHubClientSecret")
		out.OAuthRedirectBase = getString(oa, "OAuthRedirectBase")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "Host")
		if v := getInt(sm, "Port"); v != 0 {
			out.SMTPPort = v
		}
		out.SMTPUsername = getString(sm, "Username")
		out.SMTPPassword = getString(sm, "Password")
		out.SMTPFrom = getString(sm, "From")
		out.SMTPFromName = getString(sm, "FromName")
		out.SMTPTLS = getBool(sm, "TLS")
		out.ContactRecipient = getString(sm, "ContactRecipient")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://127.0.0.1:" + c.AppPort
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "cloudpan"
	}
	if c.DBName == "" {
		c.DBName = "cloudpan"
	}
	if c.UploadRoot == "" {
		c.UploadRoot = "static/uploads"
	}
	if c.AvatarDir == "" {
		c.AvatarDir = "static/avatars"
	}
	if c.QuotaBytes == 0 {
		c.QuotaBytes = 4 << 30 // 4 GiB per user
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 100 << 20
	}
	if c.MaxAvatarBytes == 0 {
		c.MaxAvatarBytes = 2 << 20
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{
			"txt", "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
			"png", "jpg", "jpeg", "gif", "bmp", "webp",
			"zip", "rar", "tar", "gz", "7z",
			"csv", "json", "xml", "md", "mp4", "mp3",
		}
	}
	if len(c.AllowedAvatarExtensions) == 0 {
		c.AllowedAvatarExtensions = []string{"png", "jpg", "jpeg", "gif"}
	}
	if c.AdminKeyDir == "" {
		c.AdminKeyDir = "admin_keys"
	}
	if c.AdminKeyFilename == "" {
		c.AdminKeyFilename = "admin_key.dat"
	}
	if c.AdminSessionMinutes == 0 {
		c.AdminSessionMinutes = 60
	}
	if c.ShareDefaultHours == 0 {
		c.ShareDefaultHours = 24
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/cloudpan.log"
	}
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)

	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)

	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_LOG_PATH", c.GinPath)

	c.UploadRoot = getEnv("UPLOAD_ROOT", c.UploadRoot)
	c.AvatarDir = getEnv("AVATAR_DIR", c.AvatarDir)
	if v := os.Getenv("QUOTA_BYTES"); v != "" {
		c.QuotaBytes = mustParseInt64(v)
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		c.MaxUploadBytes = mustParseInt64(v)
	}
	if v := os.Getenv("MAX_AVATAR_BYTES"); v != "" {
		c.MaxAvatarBytes = mustParseInt64(v)
	}
	c.AllowedExtensions = readListEnv("ALLOWED_EXTENSIONS", c.AllowedExtensions)
	c.AllowedAvatarExtensions = readListEnv("ALLOWED_AVATAR_EXTENSIONS", c.AllowedAvatarExtensions)

	c.AdminKeyDir = getEnv("ADMIN_KEY_DIR", c.AdminKeyDir)
	c.AdminKeyFilename = getEnv("ADMIN_KEY_FILENAME", c.AdminKeyFilename)
	if v := os.Getenv("ADMIN_SESSION_MINUTES"); v != "" {
		c.AdminSessionMinutes = mustParseInt(v)
	}
	if v := os.Getenv("SHARE_DEFAULT_HOURS"); v != "" {
		c.ShareDefaultHours = mustParseInt(v)
	}

	if v := os.Getenv("REGISTER_CAPTCHA_ENABLED"); v != "" {
		c.RegisterCaptchaEnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.GitHubClientID = getEnv("GITHUB_CLIENT_ID", c.GitHubClientID)
	c.GitHubClientSecret = getEnv("GITHUB_CLIENT_SECRET", c.GitHubClientSecret)
	c.OAuthRedirectBase = getEnv("OAUTH_REDIRECT_BASE", c.OAuthRedirectBase)

	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	if v := os.Getenv("SMTP_PORT"); v != "" {
		c.SMTPPort = mustParseInt(v)
	}
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.SMTPFrom = getEnv("SMTP_FROM", c.SMTPFrom)
	c.SMTPFromName = getEnv("SMTP_FROM_NAME", c.SMTPFromName)
	if v := os.Getenv("SMTP_TLS"); v != "" {
		c.SMTPTLS = v == "1" || strings.EqualFold(v, "true")
	}

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	if v := os.Getenv("LOG_MAX_SIZE_MB"); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := os.Getenv("LOG_MAX_BACKUPS"); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := os.Getenv("LOG_MAX_AGE_DAYS"); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}
}

func mustParseInt(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Fatalf("invalid integer value %q in environment", val)
	}
	return n
}

func mustParseInt64(val string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		log.Fatalf("invalid integer value %q in environment", val)
	}
	return n
}

func readListEnv(key string, defaults []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			res = append(res, s)
		}
	}
	if len(res) == 0 {
		return defaults
	}
	return res
}
