package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/tenantwire/internal/infrastructure/env"
)

// DetermineConfigPath returns an empty path when no file is found; Load then
// runs on defaults and environment overrides only.
func DetermineConfigPath() string {
	var configPath string

	if flag.Lookup("config") == nil {
		flag.StringVar(&configPath, "config", "", "path to config file")
	}
	if !flag.Parsed() {
		flag.Parse()
	}

	if configPath == "" {
		configPath = env.GetString("TENANTWIRE_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml",
			"/etc/tenantwire/config.yaml",
			"/app/config.yaml",
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
