package config

const (
	defaultConfigPath        = "~/.config/yayd/config.toml"
	defaultDownloadDir       = "~/Downloads/yayd"
	defaultStateDir          = "~/.local/share/yayd"
	defaultLogDir            = "~/.local/share/yayd/logs"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultYtdlpBinary       = "yt-dlp"
	defaultMergeOutputFormat = "mp4"
	defaultAudioFormat       = "mp3"
	defaultAudioQuality      = "192"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNotifyTimeout     = 10

	// downloadFolderEnv overrides paths.download_dir when set.
	downloadFolderEnv = "DOWNLOAD_FOLDER"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Fetch: Fetch{
			Binary:            defaultYtdlpBinary,
			MergeOutputFormat: defaultMergeOutputFormat,
			AudioFormat:       defaultAudioFormat,
			AudioQuality:      defaultAudioQuality,
			RestrictFilenames: true,
			WindowsFilenames:  true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
