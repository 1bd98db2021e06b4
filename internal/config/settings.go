package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/handiism/image-scraper/internal/http"
	ioutils "github.com/handiism/image-scraper/internal/io"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "IMGSCRAPE_"

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath          string  `json:"downloads_path" toml:"downloads_path" yaml:"downloads_path"`
	MaxConcurrentDownloads int     `json:"max_concurrent_downloads" toml:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	DownloadMaxRetries     int     `json:"download_max_retries" toml:"download_max_retries" yaml:"download_max_retries"`
	DownloadRetryCooldown  float64 `json:"download_retry_cooldown" toml:"download_retry_cooldown" yaml:"download_retry_cooldown"`
	DownloadRetryExponent  float64 `json:"download_retry_exponent" toml:"download_retry_exponent" yaml:"download_retry_exponent"`

	// Preview settings
	PreviewSize           int   `json:"preview_size" toml:"preview_size" yaml:"preview_size"`
	MaxPreviewBytes       int64 `json:"max_preview_bytes" toml:"max_preview_bytes" yaml:"max_preview_bytes"`
	MaxPreviewPixels      int64 `json:"max_preview_pixels" toml:"max_preview_pixels" yaml:"max_preview_pixels"`
	MaxConcurrentPreviews int   `json:"max_concurrent_previews" toml:"max_concurrent_previews" yaml:"max_concurrent_previews"`

	// HTTP settings
	RequestTimeoutSeconds float64 `json:"request_timeout_seconds" toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	UserAgent             string  `json:"user_agent" toml:"user_agent" yaml:"user_agent"`
	MaxPageBytes          int64   `json:"max_page_bytes" toml:"max_page_bytes" yaml:"max_page_bytes"`

	// Manifest written next to the downloads: "", "text", "json" or "yaml"
	ManifestFormat string `json:"manifest_format" toml:"manifest_format" yaml:"manifest_format"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:          filepath.Join(homeDir, "Pictures", "imgscrape"),
		MaxConcurrentDownloads: 4,
		DownloadMaxRetries:     3,
		DownloadRetryCooldown:  0.2,
		DownloadRetryExponent:  2.0,

		PreviewSize:           150,
		MaxPreviewBytes:       20 << 20,
		MaxPreviewPixels:      ioutils.DefaultMaxPixels,
		MaxConcurrentPreviews: 8,

		RequestTimeoutSeconds: 30,
		UserAgent:             http.DefaultUserAgent,
		MaxPageBytes:          http.DefaultMaxPageBytes,
	}
}

// Load reads settings from a file. The format is chosen by extension:
// .toml, .yaml/.yml, anything else is read as JSON.
//
// A missing file is not an error; defaults are returned. Values absent
// from the file keep their defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	switch formatOf(path) {
	case "toml":
		err = toml.Unmarshal(data, settings)
	case "yaml":
		err = yaml.Unmarshal(data, settings)
	default:
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return settings, settings.Validate()
}

// Save writes settings to a file in the format matching its extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(s)
		data = buf.Bytes()
	case "yaml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Validate rejects settings the pipeline cannot run with.
func (s *Settings) Validate() error {
	switch {
	case s.PreviewSize <= 0:
		return fmt.Errorf("preview_size must be positive, got %d", s.PreviewSize)
	case s.MaxConcurrentDownloads <= 0:
		return fmt.Errorf("max_concurrent_downloads must be positive, got %d", s.MaxConcurrentDownloads)
	case s.MaxConcurrentPreviews <= 0:
		return fmt.Errorf("max_concurrent_previews must be positive, got %d", s.MaxConcurrentPreviews)
	case s.MaxPreviewBytes < 0:
		return fmt.Errorf("max_preview_bytes must not be negative, got %d", s.MaxPreviewBytes)
	case s.MaxPreviewPixels < 0:
		return fmt.Errorf("max_preview_pixels must not be negative, got %d", s.MaxPreviewPixels)
	case s.MaxPageBytes < 0:
		return fmt.Errorf("max_page_bytes must not be negative, got %d", s.MaxPageBytes)
	case s.DownloadMaxRetries < 0:
		return fmt.Errorf("download_max_retries must not be negative, got %d", s.DownloadMaxRetries)
	case s.RequestTimeoutSeconds < 0:
		return fmt.Errorf("request_timeout_seconds must not be negative, got %g", s.RequestTimeoutSeconds)
	}
	switch s.ManifestFormat {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("manifest_format must be text, json or yaml, got %q", s.ManifestFormat)
	}
	return nil
}

// ApplyEnv overrides settings from IMGSCRAPE_* variables found by lookup
// (normally os.LookupEnv).
//
// Recognised variables: IMGSCRAPE_DOWNLOADS_PATH, IMGSCRAPE_USER_AGENT,
// IMGSCRAPE_PREVIEW_SIZE, IMGSCRAPE_MAX_CONCURRENT_PREVIEWS,
// IMGSCRAPE_MAX_CONCURRENT_DOWNLOADS, IMGSCRAPE_DOWNLOAD_MAX_RETRIES,
// IMGSCRAPE_MAX_PREVIEW_BYTES, IMGSCRAPE_MAX_PREVIEW_PIXELS,
// IMGSCRAPE_MAX_PAGE_BYTES, IMGSCRAPE_REQUEST_TIMEOUT_SECONDS,
// IMGSCRAPE_MANIFEST_FORMAT.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DOWNLOADS_PATH":  &s.DownloadsPath,
		"USER_AGENT":      &s.UserAgent,
		"MANIFEST_FORMAT": &s.ManifestFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PREVIEW_SIZE":             &s.PreviewSize,
		"MAX_CONCURRENT_PREVIEWS":  &s.MaxConcurrentPreviews,
		"MAX_CONCURRENT_DOWNLOADS": &s.MaxConcurrentDownloads,
		"DOWNLOAD_MAX_RETRIES":     &s.DownloadMaxRetries,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	int64s := map[string]*int64{
		"MAX_PREVIEW_BYTES":  &s.MaxPreviewBytes,
		"MAX_PREVIEW_PIXELS": &s.MaxPreviewPixels,
		"MAX_PAGE_BYTES":     &s.MaxPageBytes,
	}
	for name, dst := range int64s {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "REQUEST_TIMEOUT_SECONDS"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT_SECONDS: %w", EnvPrefix, err)
		}
		s.RequestTimeoutSeconds = f
	}

	return s.Validate()
}

// RequestTimeout returns the per-request timeout.
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds * float64(time.Second))
}

// RetryDelay returns how long to wait before retry number tries (0-based):
// cooldown * exponent^tries seconds.
func (s *Settings) RetryDelay(tries int) time.Duration {
	cooldown := s.DownloadRetryCooldown * math.Pow(s.DownloadRetryExponent, float64(tries))
	return time.Duration(cooldown * float64(time.Second))
}

// NewHTTPClient builds the HTTP client described by the settings.
func (s *Settings) NewHTTPClient() *http.Client {
	return http.NewClient(
		http.WithTimeout(s.RequestTimeout()),
		http.WithUserAgent(s.UserAgent),
		http.WithMaxPageBytes(s.MaxPageBytes),
	)
}
