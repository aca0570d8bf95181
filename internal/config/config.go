package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Download struct {
		// TempDir is where produced artifacts land until the sweeper reclaims
		// them. Empty means a fresh directory under the OS temp root.
		TempDir string
	}
	Cache struct {
		TTLMinutes int
	}
	Cleanup struct {
		IntervalMinutes int
		MaxAgeHours     int
	}
	Engine struct {
		BinPath          string
		SocketTimeout    int
		Retries          int
		ExtractorRetries int
	}
	Proxy struct {
		Enabled  bool
		Host     string
		Port     string
		Username string
		Password string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("MEDIAGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("database.path", "data/mediagrab.db")
	v.SetDefault("download.tempdir", "")
	v.SetDefault("cache.ttlminutes", 60)
	v.SetDefault("cleanup.intervalminutes", 60)
	v.SetDefault("cleanup.maxagehours", 24)
	v.SetDefault("engine.binpath", "yt-dlp")
	v.SetDefault("engine.sockettimeout", 30)
	v.SetDefault("engine.retries", 10)
	v.SetDefault("engine.extractorretries", 3)
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.port", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
