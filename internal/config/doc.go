// Package config provides configuration management for imgscrape.
//
// This package handles:
//   - Loading and saving settings from JSON, TOML or YAML files
//   - Default configuration values
//   - Environment variable overrides (IMGSCRAPE_*)
//   - Conversion to HTTP client options and retry delays for other packages
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Pictures/imgscrape
//	// 150px previews, 8 concurrent previews, 4 concurrent downloads
//
// # Loading from File
//
// The codec is picked from the extension (.json, .toml, .yaml, .yml):
//
//	settings, err := config.Load("/path/to/config.toml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Environment
//
//	err := settings.ApplyEnv(os.LookupEnv)
//	// IMGSCRAPE_USER_AGENT, IMGSCRAPE_PREVIEW_SIZE, ...
//
// # Saving Settings
//
//	settings.DownloadsPath = "/custom/path"
//	err := settings.Save("/path/to/config.yaml")
package config
