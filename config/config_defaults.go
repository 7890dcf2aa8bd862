package config

import "strings"

// DefaultFilterLists 内置的默认过滤列表
var DefaultFilterLists = []FilterListSource{
	{Name: "easylist", URL: "https://easylist.to/easylist/easylist.txt"},
	{Name: "easyprivacy", URL: "https://easylist.to/easylist/easyprivacy.txt"},
	{Name: "ublock_filters", URL: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/filters.txt"},
	{Name: "ublock_privacy", URL: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/privacy.txt"},
	{Name: "ublock_annoyances", URL: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/annoyances.txt"},
	{Name: "ublock_unbreak", URL: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/unbreak.txt"},
	{Name: "brave_unbreak", URL: "https://raw.githubusercontent.com/brave/adblock-lists/master/brave-unbreak.txt"},
	{Name: "peter_lowe", URL: "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=adblockplus&showintro=0&mimetype=plaintext"},
}

// setDefaultValues 设置配置文件中缺失字段的默认值
func setDefaultValues(cfg *Config, rawData []byte) {
	setAdBlockDefaults(cfg, rawData)
	setCosmeticDefaults(cfg, rawData)
	setDetectorDefaults(cfg, rawData)
	setPopupDefaults(cfg, rawData)
	setBrowserDefaults(cfg)
	setWebUIDefaults(cfg)
	setStatsDefaults(cfg)
	setSystemDefaults(cfg)
}

// omitted 判断某个布尔开关是否在原始 YAML 中被显式写出。
// 未写出时 Unmarshal 得到 false，但我们希望默认开启。
func omitted(rawData []byte, section, key string) bool {
	raw := string(rawData)
	idx := strings.Index(raw, section+":")
	if idx < 0 {
		return true
	}
	rest := raw[idx+len(section)+1:]
	// 只看到下一个顶级段落为止
	for i, line := range strings.Split(rest, "\n") {
		if i > 0 && len(line) > 0 && line[0] != ' ' && line[0] != '\t' && line[0] != '#' {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), key+":") {
			return false
		}
	}
	return true
}

// setAdBlockDefaults 设置广告拦截配置的默认值
func setAdBlockDefaults(cfg *Config, rawData []byte) {
	if !cfg.AdBlock.Enable && omitted(rawData, "adblock", "enable") {
		cfg.AdBlock.Enable = true
	}
	if cfg.AdBlock.Engine == "" {
		cfg.AdBlock.Engine = "urlfilter"
	}
	if cfg.AdBlock.DataDir == "" {
		cfg.AdBlock.DataDir = "./adshield_data"
	}
	if len(cfg.AdBlock.Lists) == 0 {
		cfg.AdBlock.Lists = append([]FilterListSource(nil), DefaultFilterLists...)
	}
	if cfg.AdBlock.UserAgent == "" {
		cfg.AdBlock.UserAgent = "adshield/1.0"
	}
	if cfg.AdBlock.DownloadTimeoutSeconds == 0 {
		cfg.AdBlock.DownloadTimeoutSeconds = 60
	}
	if cfg.AdBlock.MinListBytes == 0 {
		cfg.AdBlock.MinListBytes = 100
	}
	if cfg.AdBlock.MaxConcurrentDownloads == 0 {
		cfg.AdBlock.MaxConcurrentDownloads = 8
	}
	if cfg.AdBlock.DecisionCacheSize == 0 {
		cfg.AdBlock.DecisionCacheSize = 4096
	}
	if cfg.AdBlock.UpdateIntervalHours == 0 {
		cfg.AdBlock.UpdateIntervalHours = 24
	}
	if cfg.AdBlock.StartupUpdateDelaySeconds == 0 {
		cfg.AdBlock.StartupUpdateDelaySeconds = 60
	}
}

func setCosmeticDefaults(cfg *Config, rawData []byte) {
	if !cfg.Cosmetic.Enabled && omitted(rawData, "cosmetic", "enabled") {
		cfg.Cosmetic.Enabled = true
	}
	if cfg.Cosmetic.ScanIntervalMs == 0 {
		cfg.Cosmetic.ScanIntervalMs = 2000
	}
}

// setDetectorDefaults 设置视频广告检测的默认值
func setDetectorDefaults(cfg *Config, rawData []byte) {
	d := &cfg.Detector
	if !d.Enabled && omitted(rawData, "detector", "enabled") {
		d.Enabled = true
	}
	if !d.Mute && omitted(rawData, "detector", "mute") {
		d.Mute = true
	}
	if d.PollIntervalMs == 0 {
		d.PollIntervalMs = 250
	}
	if d.SkipPollIntervalMs == 0 {
		d.SkipPollIntervalMs = 200
	}
	if d.MinSkipElapsedMs == 0 {
		d.MinSkipElapsedMs = 500
	}
	if d.MinPlaybackSeconds == 0 {
		d.MinPlaybackSeconds = 0.1
	}
	if d.SkipTimeoutPolls == 0 {
		d.SkipTimeoutPolls = 150
	}
	if d.AdPlaybackRate == 0 {
		d.AdPlaybackRate = 16
	}
}

func setPopupDefaults(cfg *Config, rawData []byte) {
	p := &cfg.Popup
	if !p.Enabled && omitted(rawData, "popup", "enabled") {
		p.Enabled = true
	}
	if p.ScanIntervalMs == 0 {
		p.ScanIntervalMs = 1500
	}
	if p.IframeZIndex == 0 {
		p.IframeZIndex = 999
	}
	if p.OverlayZIndex == 0 {
		p.OverlayZIndex = 50
	}
	if p.OverlayArea == 0 {
		p.OverlayArea = 0.15
	}
	if p.FullscreenZIndex == 0 {
		p.FullscreenZIndex = 100
	}
}

func setBrowserDefaults(cfg *Config) {
	if len(cfg.Browser.StartURLs) == 0 {
		cfg.Browser.StartURLs = []string{"about:blank"}
	}
	if cfg.Browser.Sessions <= 0 {
		cfg.Browser.Sessions = 1
	}
}

func setWebUIDefaults(cfg *Config) {
	if cfg.WebUI.ListenPort == 0 {
		cfg.WebUI.ListenPort = 8090
	}
}

// setStatsDefaults 设置拦截热点统计的默认值
func setStatsDefaults(cfg *Config) {
	s := &cfg.Stats
	if s.TopHostsWindowHours == 0 {
		s.TopHostsWindowHours = 24
	}
	if s.TopHostsBucketMinutes == 0 {
		s.TopHostsBucketMinutes = 60
	}
	if s.TopHostsShardCount == 0 {
		s.TopHostsShardCount = 16
	}
	if s.TopHostsMaxPerBucket == 0 {
		s.TopHostsMaxPerBucket = 5000
	}
}

// setSystemDefaults 设置系统配置的默认值
func setSystemDefaults(cfg *Config) {
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
	if cfg.System.LogMaxSizeMB == 0 {
		cfg.System.LogMaxSizeMB = 20
	}
	if cfg.System.LogMaxBackups == 0 {
		cfg.System.LogMaxBackups = 3
	}
	if cfg.System.LogMaxAgeDays == 0 {
		cfg.System.LogMaxAgeDays = 7
	}
}
