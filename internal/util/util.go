package util

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeDomain 规范化域名
func NormalizeDomain(domain string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// IsValidDomain 验证域名格式
func IsValidDomain(domain string) bool {
	domain = strings.TrimRight(domain, ".")
	if len(domain) == 0 || len(domain) > 255 {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}

		for _, ch := range label {
			if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
				(ch >= '0' && ch <= '9') || ch == '-' || ch == '_') {
				return false
			}
		}
	}

	return true
}

// HostnameOf 从 URL 中提取规范化的主机名，解析失败返回空字符串
func HostnameOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return NormalizeDomain(u.Hostname())
}

// RegistrableDomain 返回 eTLD+1，例如 a.b.example.co.uk -> example.co.uk。
// IP 地址与无法识别的后缀原样返回。
func RegistrableDomain(host string) string {
	host = NormalizeDomain(host)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// SameSite 判断两个主机是否属于同一可注册域
func SameSite(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return RegistrableDomain(a) == RegistrableDomain(b)
}

// ParentDomains 返回域名自身及其所有父域（不含顶级后缀），
// 例如 ads.sub.example.com -> [ads.sub.example.com sub.example.com example.com]
func ParentDomains(host string) []string {
	host = NormalizeDomain(host)
	if host == "" {
		return nil
	}
	out := []string{host}
	if net.ParseIP(host) != nil {
		return out
	}
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if !strings.Contains(host, ".") {
			break
		}
		out = append(out, host)
	}
	return out
}

// IsSubdomainOf 判断 host 是否等于 parent 或是其子域
func IsSubdomainOf(host, parent string) bool {
	host, parent = NormalizeDomain(host), NormalizeDomain(parent)
	if host == parent {
		return true
	}
	return strings.HasSuffix(host, "."+parent)
}

var videoPlatformHosts = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com"}

// IsVideoPlatformHost 判断主机是否为需要特殊处理的视频平台
func IsVideoPlatformHost(host string) bool {
	host = NormalizeDomain(host)
	for _, h := range videoPlatformHosts {
		if host == h {
			return true
		}
	}
	return false
}

// IsVideoPlatformURL 同 IsVideoPlatformHost，但接受完整 URL
func IsVideoPlatformURL(rawURL string) bool {
	return IsVideoPlatformHost(HostnameOf(rawURL))
}

// IsWebURL 仅 http/https 页面需要拦截与注入
func IsWebURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
