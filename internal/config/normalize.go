package config

import (
	"fmt"
	"os"
	"strings"

	"komf/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMediaServer()
	c.normalizeMetadata()
	c.normalizeJobs()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = envValue("KOMF_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeMediaServer() {
	c.MediaServer.Type = strings.ToLower(strings.TrimSpace(c.MediaServer.Type))
	if c.MediaServer.Type == "" {
		c.MediaServer.Type = defaultMediaServerType
	}
	c.MediaServer.URL = strings.TrimRight(strings.TrimSpace(c.MediaServer.URL), "/")
	if c.MediaServer.URL == "" {
		c.MediaServer.URL = strings.TrimRight(envValue("KOMF_MEDIA_SERVER_URL"), "/")
	}
	c.MediaServer.Username = strings.TrimSpace(c.MediaServer.Username)
	if c.MediaServer.Password == "" {
		c.MediaServer.Password = envValue("KOMF_KOMGA_PASSWORD")
	}
	c.MediaServer.APIKey = strings.TrimSpace(c.MediaServer.APIKey)
	if c.MediaServer.APIKey == "" {
		c.MediaServer.APIKey = envValue("KOMF_KAVITA_API_KEY")
	}
	if c.MediaServer.TimeoutSeconds <= 0 {
		c.MediaServer.TimeoutSeconds = defaultMediaServerTimeout
	}
}

func (c *Config) normalizeMetadata() {
	m := &c.Metadata
	m.NameMatchingMode = strings.ToLower(strings.TrimSpace(m.NameMatchingMode))
	if m.NameMatchingMode == "" {
		m.NameMatchingMode = defaultNameMatchingMode
	}
	m.DefaultMediaType = strings.ToUpper(strings.TrimSpace(m.DefaultMediaType))
	if m.DefaultMediaType == "" {
		m.DefaultMediaType = defaultMediaType
	}
	types := make(map[string]string, len(m.LibraryMediaTypes))
	for id, value := range m.LibraryMediaTypes {
		types[strings.TrimSpace(id)] = strings.ToUpper(strings.TrimSpace(value))
	}
	m.LibraryMediaTypes = types

	pp := &m.PostProcessing
	pp.SeriesTitleLanguage = language.Normalize(pp.SeriesTitleLanguage)
	pp.ReadingDirectionValue = strings.ToUpper(strings.TrimSpace(pp.ReadingDirectionValue))
	pp.LanguageValue = language.Normalize(pp.LanguageValue)
	pp.AlternativeSeriesTitleLanguages = language.NormalizeList(pp.AlternativeSeriesTitleLanguages)

	providers := make(map[string]Provider, len(m.Providers))
	for name, p := range m.Providers {
		p.NameMatchingMode = strings.ToLower(strings.TrimSpace(p.NameMatchingMode))
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		if p.RetryAttempts <= 0 {
			p.RetryAttempts = defaultProviderRetryAttempts
		}
		providers[strings.ToLower(strings.TrimSpace(name))] = p
	}
	m.Providers = providers
}

func (c *Config) normalizeJobs() {
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = defaultJobWorkers
	}
	if c.Jobs.EventBufferSize <= 0 {
		c.Jobs.EventBufferSize = defaultEventBufferSize
	}
	if c.Jobs.StreamRetentionSeconds < 0 {
		c.Jobs.StreamRetentionSeconds = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = envValue("KOMF_NTFY_TOPIC")
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
