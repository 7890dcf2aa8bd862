package config

// Config 主配置结构
type Config struct {
	AdBlock  AdBlockConfig  `yaml:"adblock" json:"adblock"`
	Cosmetic CosmeticConfig `yaml:"cosmetic" json:"cosmetic"`
	Detector DetectorConfig `yaml:"detector" json:"detector"`
	Popup    PopupConfig    `yaml:"popup" json:"popup"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	WebUI    WebUIConfig    `yaml:"webui" json:"webui"`
	Stats    StatsConfig    `yaml:"stats" json:"stats"`
	System   SystemConfig   `yaml:"system" json:"system"`
}

// FilterListSource 一个命名的过滤列表地址
type FilterListSource struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// AdBlockConfig 广告拦截配置
type AdBlockConfig struct {
	Enable  bool   `yaml:"enable" json:"enable"`
	Engine  string `yaml:"engine,omitempty" json:"engine"`
	DataDir string `yaml:"data_dir,omitempty" json:"data_dir"`

	Lists []FilterListSource `yaml:"lists,omitempty" json:"lists"`

	UserAgent              string `yaml:"user_agent,omitempty" json:"user_agent"`
	DownloadTimeoutSeconds int    `yaml:"download_timeout_seconds,omitempty" json:"download_timeout_seconds"`
	MinListBytes           int    `yaml:"min_list_bytes,omitempty" json:"min_list_bytes"`
	MaxConcurrentDownloads int    `yaml:"max_concurrent_downloads,omitempty" json:"max_concurrent_downloads"`
	DecisionCacheSize      int    `yaml:"decision_cache_size,omitempty" json:"decision_cache_size"`

	UpdateIntervalHours       int `yaml:"update_interval_hours,omitempty" json:"update_interval_hours"`
	StartupUpdateDelaySeconds int `yaml:"startup_update_delay_seconds,omitempty" json:"startup_update_delay_seconds"`
}

// CosmeticConfig 元素隐藏配置
type CosmeticConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	ScanIntervalMs int  `yaml:"scan_interval_ms,omitempty" json:"scan_interval_ms"`
}

// DetectorConfig 视频广告状态检测配置
type DetectorConfig struct {
	Enabled            bool    `yaml:"enabled" json:"enabled"`
	PollIntervalMs     int     `yaml:"poll_interval_ms,omitempty" json:"poll_interval_ms"`
	SkipPollIntervalMs int     `yaml:"skip_poll_interval_ms,omitempty" json:"skip_poll_interval_ms"`
	MinSkipElapsedMs   int     `yaml:"min_skip_elapsed_ms,omitempty" json:"min_skip_elapsed_ms"`
	MinPlaybackSeconds float64 `yaml:"min_playback_seconds,omitempty" json:"min_playback_seconds"`
	SkipTimeoutPolls   int     `yaml:"skip_timeout_polls,omitempty" json:"skip_timeout_polls"`
	AdPlaybackRate     float64 `yaml:"ad_playback_rate,omitempty" json:"ad_playback_rate"`
	Mute               bool    `yaml:"mute" json:"mute"`
}

// PopupConfig 弹窗与遮罩拦截配置
type PopupConfig struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	ScanIntervalMs   int     `yaml:"scan_interval_ms,omitempty" json:"scan_interval_ms"`
	IframeZIndex     int     `yaml:"iframe_zindex,omitempty" json:"iframe_zindex"`
	OverlayZIndex    int     `yaml:"overlay_zindex,omitempty" json:"overlay_zindex"`
	OverlayArea      float64 `yaml:"overlay_area,omitempty" json:"overlay_area"`
	FullscreenZIndex int     `yaml:"fullscreen_zindex,omitempty" json:"fullscreen_zindex"`
}

// BrowserConfig 浏览器进程配置
type BrowserConfig struct {
	Headless  bool     `yaml:"headless" json:"headless"`
	NoSandbox bool     `yaml:"no_sandbox" json:"no_sandbox"`
	Bin       string   `yaml:"bin,omitempty" json:"bin"`
	Proxy     string   `yaml:"proxy,omitempty" json:"proxy"`
	Stealth   bool     `yaml:"stealth" json:"stealth"`
	StartURLs []string `yaml:"start_urls,omitempty" json:"start_urls"`
	Sessions  int      `yaml:"sessions,omitempty" json:"sessions"`
}

// WebUIConfig 控制接口配置
type WebUIConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	ListenPort int  `yaml:"listen_port,omitempty" json:"listen_port"`
}

// StatsConfig 拦截热点统计配置
type StatsConfig struct {
	TopHostsWindowHours   int `yaml:"top_hosts_window_hours,omitempty" json:"top_hosts_window_hours"`
	TopHostsBucketMinutes int `yaml:"top_hosts_bucket_minutes,omitempty" json:"top_hosts_bucket_minutes"`
	TopHostsShardCount    int `yaml:"top_hosts_shard_count,omitempty" json:"top_hosts_shard_count"`
	TopHostsMaxPerBucket  int `yaml:"top_hosts_max_per_bucket,omitempty" json:"top_hosts_max_per_bucket"`
}

// SystemConfig 系统与日志配置
type SystemConfig struct {
	LogLevel      string `yaml:"log_level,omitempty" json:"log_level"`
	LogFile       string `yaml:"log_file,omitempty" json:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb,omitempty" json:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups,omitempty" json:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days,omitempty" json:"log_max_age_days"`
}
