package config

const (
	defaultDataDir                = "~/.local/share/komf"
	defaultLogDir                 = "~/.local/share/komf/logs"
	defaultAPIBind                = "127.0.0.1:8085"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultMediaServerType        = "komga"
	defaultMediaServerTimeout     = 30
	defaultNameMatchingMode       = "closest_match"
	defaultMediaType              = "MANGA"
	defaultJobWorkers             = 4
	defaultEventBufferSize        = 256
	defaultStreamRetentionSeconds = 600
	defaultNotifyRequestTimeout   = 10
	defaultProviderRetryAttempts  = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		MediaServer: MediaServer{
			Type:           defaultMediaServerType,
			TimeoutSeconds: defaultMediaServerTimeout,
		},
		Metadata: Metadata{
			NameMatchingMode:  defaultNameMatchingMode,
			DefaultMediaType:  defaultMediaType,
			LibraryMediaTypes: map[string]string{},
			Aggregate:         false,
			UpdateSeriesTitle: true,
			BookMetadata:      true,
			PostProcessing: PostProcessing{
				SeriesTitle:                     false,
				AlternativeSeriesTitles:         false,
				AlternativeSeriesTitleLanguages: []string{"en", "ja", "ja-ro"},
				OrderBooks:                      false,
			},
			Providers: defaultProviders(),
		},
		Jobs: Jobs{
			Workers:                defaultJobWorkers,
			EventBufferSize:        defaultEventBufferSize,
			StreamRetentionSeconds: defaultStreamRetentionSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			SeriesMatched:  true,
			LibraryScan:    true,
			Errors:         true,
		},
	}
}

func defaultProviders() map[string]Provider {
	return map[string]Provider{
		"mangadex": {Enabled: true, Priority: 10, RetryAttempts: defaultProviderRetryAttempts},
		"anilist":  {Enabled: false, Priority: 20, RetryAttempts: defaultProviderRetryAttempts},
	}
}
