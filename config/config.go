package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CreateDefaultConfig 创建默认配置文件
func CreateDefaultConfig(filePath string) error {
	return os.WriteFile(filePath, []byte(DefaultConfigContent), 0644)
}

// LoadConfig 从 YAML 文件加载配置，文件不存在时自动创建默认配置
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := CreateDefaultConfig(filePath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data = []byte(DefaultConfigContent)
	}

	return Parse(data)
}

// Parse 解析 YAML 内容并补全默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	setDefaultValues(&cfg, data)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig 将配置写回文件
func SaveConfig(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// Validate 检查配置中的取值范围
func (c *Config) Validate() error {
	switch c.AdBlock.Engine {
	case "urlfilter", "simple":
	default:
		return fmt.Errorf("unknown adblock engine: %s", c.AdBlock.Engine)
	}
	seen := make(map[string]struct{}, len(c.AdBlock.Lists))
	for _, l := range c.AdBlock.Lists {
		if l.Name == "" || l.URL == "" {
			return fmt.Errorf("filter list entries need both name and url")
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("duplicate filter list name: %s", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	if c.AdBlock.MaxConcurrentDownloads < 0 || c.AdBlock.MinListBytes < 0 {
		return fmt.Errorf("adblock download limits cannot be negative")
	}
	if c.Detector.AdPlaybackRate < 0 || c.Detector.AdPlaybackRate > 16 {
		return fmt.Errorf("detector ad_playback_rate must be within (0, 16]")
	}
	if c.Popup.OverlayArea < 0 || c.Popup.OverlayArea > 1 {
		return fmt.Errorf("popup overlay_area must be a fraction between 0 and 1")
	}
	if c.WebUI.ListenPort <= 0 || c.WebUI.ListenPort > 65535 {
		return fmt.Errorf("invalid WebUI listen port: %d", c.WebUI.ListenPort)
	}
	return nil
}

// UpdateInterval 列表自动更新间隔
func (c *AdBlockConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalHours) * time.Hour
}

// DownloadTimeout 单个列表的下载超时
func (c *AdBlockConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// StartupUpdateDelay 启动后首次检查更新的延迟
func (c *AdBlockConfig) StartupUpdateDelay() time.Duration {
	return time.Duration(c.StartupUpdateDelaySeconds) * time.Second
}
