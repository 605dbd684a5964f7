package config

import (
	"runtime"
)

// PlatformDefaults returns platform-specific default values
type PlatformDefaults struct {
	Executable string
	LogFile    string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS
func GetPlatformDefaults() PlatformDefaults {
	switch runtime.GOOS {
	case "windows":
		return PlatformDefaults{
			Executable: "redis-server.exe",
			LogFile:    "redis-service.log", // relative to the executable's directory
		}
	default:
		return PlatformDefaults{
			Executable: "redis-server",
			LogFile:    "redis-service.log",
		}
	}
}

// UpdateConfigDefaults updates viper defaults with platform-specific values
// This is called from setDefaults() in config.go
func UpdateConfigDefaults(v interface{}) {
	type viper interface {
		SetDefault(key string, value interface{})
	}

	if viperInstance, ok := v.(viper); ok {
		defaults := GetPlatformDefaults()

		viperInstance.SetDefault("executable", defaults.Executable)
		viperInstance.SetDefault("logging.file", defaults.LogFile)
	}
}
