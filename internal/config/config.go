// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const defaultAllowedOrigins = "http://localhost:5173,http://localhost:3000,http://localhost:8080"

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig is the merged runtime configuration. The fields tagged for JSON
// are the ones a user can override through data/config.json.
type AppConfig struct {
	Port          string        `json:"port"`
	APIBaseURL    string        `json:"api_base_url"`
	HTTPTimeout   time.Duration `json:"-"`
	DataDir       string        `json:"data_dir"`
	LogDir        string        `json:"log_dir"`
	StorageDriver string        `json:"storage_driver"`
	StateFile     string        `json:"state_file"`
	DebugMode     bool          `json:"debug_mode"`

	CurrencyPrefix string `json:"currency_prefix"`

	// browser origins allowed by CORS and the session websocket
	AllowedOrigins []string `json:"allowed_origins"`

	// mock remote service
	DemoPort  string `json:"demo_port"`
	JWTSecret string `json:"-"`

	// encrypts the persisted access token when set
	StateSecret string `json:"-"`
}

// Config holds the environment-derived settings
type Config struct {
	Port           string
	APIBaseURL     string
	HTTPTimeout    time.Duration
	DataDir        string
	LogDir         string
	StorageDriver  string
	StateFile      string
	DebugMode      bool
	CurrencyPrefix string
	AllowedOrigins []string
	DemoPort       string
	JWTSecret      string
	StateSecret    string
}

// Load reads .env (optional) and the environment
func Load() (*Config, error) {
	godotenv.Load()

	timeout, err := getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", "file"))
	if driver != "file" && driver != "sqlite" && driver != "memory" {
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", driver)
	}

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		APIBaseURL:     strings.TrimRight(getEnv("BREAKDOWN_API_URL", "http://localhost:8000"), "/"),
		HTTPTimeout:    timeout,
		DataDir:        getEnvPath("DATA_DIR", "data"),
		LogDir:         getEnvPath("LOG_DIR", "logs"),
		StorageDriver:  driver,
		StateFile:      getEnv("STATE_FILE", "state.json"),
		DebugMode:      getEnvBool("DEBUG_MODE", true),
		CurrencyPrefix: getEnv("CURRENCY_PREFIX", "RM"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		DemoPort:       getEnv("DEMO_PORT", "8000"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_jwt_secret_for_local_demo_only"),
		StateSecret:    os.Getenv("STATE_SECRET"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath returns a directory path and makes sure it exists
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func fromBase(base *Config) *AppConfig {
	return &AppConfig{
		Port:           base.Port,
		APIBaseURL:     base.APIBaseURL,
		HTTPTimeout:    base.HTTPTimeout,
		DataDir:        base.DataDir,
		LogDir:         base.LogDir,
		StorageDriver:  base.StorageDriver,
		StateFile:      base.StateFile,
		DebugMode:      base.DebugMode,
		CurrencyPrefix: base.CurrencyPrefix,
		AllowedOrigins: base.AllowedOrigins,
		DemoPort:       base.DemoPort,
		JWTSecret:      base.JWTSecret,
		StateSecret:    base.StateSecret,
	}
}

// InitConfig loads the environment config and merges the user overrides
// saved in dataDir/config.json, then writes the merged file back.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = fromBase(baseConfig)

	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if json.Unmarshal(data, &saved) == nil {
			// only the API URL and currency prefix are user overrides;
			// everything else follows the environment
			if saved.APIBaseURL != "" {
				currentConfig.APIBaseURL = strings.TrimRight(saved.APIBaseURL, "/")
			}
			if saved.CurrencyPrefix != "" {
				currentConfig.CurrencyPrefix = saved.CurrencyPrefix
			}
		}
	}

	return saveConfigLocked()
}

// GetCurrentConfig returns a copy of the current configuration
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, err := Load()
		if err != nil {
			baseConfig = &Config{
				Port:           "8080",
				APIBaseURL:     "http://localhost:8000",
				HTTPTimeout:    30 * time.Second,
				DataDir:        "data",
				LogDir:         "logs",
				StorageDriver:  "file",
				StateFile:      "state.json",
				CurrencyPrefix: "RM",
				DemoPort:       "8000",
			}
		}
		return fromBase(baseConfig)
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateAPIURL changes and persists the remote service base URL
func UpdateAPIURL(url string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("config not initialized")
	}
	if url == "" {
		return fmt.Errorf("api url is empty")
	}

	currentConfig.APIBaseURL = strings.TrimRight(url, "/")
	return saveConfigLocked()
}

// SaveConfig writes the current configuration to disk
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("no config to save")
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}

// reset drops the loaded configuration; tests only
func reset() {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = nil
	configFile = ""
}
