package adblock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AdguardTeam/urlfilter/filterlist"
)

const (
	defaultUserAgent       = "adshield/1.0"
	defaultDownloadTimeout = 60 * time.Second
	defaultMinListBytes    = 100
	maxListBytes           = 50 * 1024 * 1024
)

// ListSource 一个命名的过滤列表地址
type ListSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RuleLoader 负责下载单个过滤列表并做基本校验
type RuleLoader struct {
	client       *http.Client
	userAgent    string
	minListBytes int
}

// NewRuleLoader 创建下载器，零值参数使用默认值
func NewRuleLoader(userAgent string, timeout time.Duration, minListBytes int) *RuleLoader {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	if minListBytes <= 0 {
		minListBytes = defaultMinListBytes
	}
	return &RuleLoader{
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		minListBytes: minListBytes,
	}
}

// Download 下载列表内容。非 200、过短或超过 50MB 的响应都视为失败。
func (rl *RuleLoader) Download(ctx context.Context, src ListSource) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", rl.userAgent)

	resp, err := rl.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Use a limited reader to prevent downloading huge files
	limitedReader := &io.LimitedReader{R: resp.Body, N: maxListBytes + 1}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, limitedReader); err != nil {
		return "", err
	}
	if buf.Len() > maxListBytes {
		return "", fmt.Errorf("list exceeds 50MB limit")
	}
	if buf.Len() < rl.minListBytes {
		return "", fmt.Errorf("list too short (%d bytes)", buf.Len())
	}
	return buf.String(), nil
}

// countRules 统计列表中能被解析的规则条数
func countRules(content string) int {
	scanner := filterlist.NewRuleScanner(strings.NewReader(content), 1, false)
	count := 0
	for scanner.Scan() {
		count++
	}
	return count
}
