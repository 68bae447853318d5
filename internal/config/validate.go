package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMediaServer(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateMediaServer() error {
	ms := c.MediaServer
	if ms.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/komf/config.toml"
		}
		return fmt.Errorf("media_server.url is required. Set KOMF_MEDIA_SERVER_URL or edit %s (create with 'komf config init')", defaultPath)
	}
	if _, err := url.ParseRequestURI(ms.URL); err != nil {
		return fmt.Errorf("media_server.url: %w", err)
	}
	switch ms.Type {
	case "komga":
		if ms.Username == "" || ms.Password == "" {
			return errors.New("media_server.username and media_server.password must be set for komga (or set KOMF_KOMGA_PASSWORD)")
		}
	case "kavita":
		if ms.APIKey == "" {
			return errors.New("media_server.api_key must be set for kavita (or set KOMF_KAVITA_API_KEY)")
		}
	default:
		return fmt.Errorf("media_server.type must be komga or kavita, got %q", ms.Type)
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if err := validateMatchingMode("metadata.name_matching_mode", c.Metadata.NameMatchingMode); err != nil {
		return err
	}
	if err := validateMediaType("metadata.default_media_type", c.Metadata.DefaultMediaType); err != nil {
		return err
	}
	for id, value := range c.Metadata.LibraryMediaTypes {
		if err := validateMediaType("metadata.library_media_types."+id, value); err != nil {
			return err
		}
	}
	switch c.Metadata.PostProcessing.ReadingDirectionValue {
	case "", "LEFT_TO_RIGHT", "RIGHT_TO_LEFT", "VERTICAL", "WEBTOON":
	default:
		return fmt.Errorf("metadata.post_processing.reading_direction_value: unsupported value %q", c.Metadata.PostProcessing.ReadingDirectionValue)
	}
	return nil
}

func (c *Config) validateProviders() error {
	enabled := 0
	for name, p := range c.Metadata.Providers {
		if !p.Enabled {
			continue
		}
		enabled++
		if p.NameMatchingMode != "" {
			if err := validateMatchingMode("metadata.providers."+name+".name_matching_mode", p.NameMatchingMode); err != nil {
				return err
			}
		}
		if rl := p.RateLimit; rl != nil {
			if rl.IntervalSeconds <= 0 || rl.EventsPerInterval <= 0 {
				return fmt.Errorf("metadata.providers.%s.rate_limit: interval_seconds and events_per_interval must be positive", name)
			}
		}
	}
	if enabled == 0 {
		return errors.New("metadata.providers: at least one provider must be enabled")
	}
	return nil
}

func (c *Config) validateJobs() error {
	return ensurePositiveMap(map[string]int{
		"jobs.workers":           c.Jobs.Workers,
		"jobs.event_buffer_size": c.Jobs.EventBufferSize,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func validateMatchingMode(key, value string) error {
	switch value {
	case "exact", "closest_match":
		return nil
	}
	return fmt.Errorf("%s must be exact or closest_match, got %q", key, value)
}

func validateMediaType(key, value string) error {
	switch strings.ToUpper(value) {
	case "MANGA", "NOVEL", "COMIC":
		return nil
	}
	return fmt.Errorf("%s must be MANGA, NOVEL or COMIC, got %q", key, value)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
