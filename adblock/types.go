package adblock

import (
	"errors"
	"time"
)

// ResourceType 请求的资源类型，与浏览器拦截面报告的类型对应
type ResourceType string

const (
	TypeDocument    ResourceType = "document"
	TypeSubdocument ResourceType = "subdocument"
	TypeScript      ResourceType = "script"
	TypeStylesheet  ResourceType = "stylesheet"
	TypeImage       ResourceType = "image"
	TypeMedia       ResourceType = "media"
	TypeFont        ResourceType = "font"
	TypeXHR         ResourceType = "xhr"
	TypeWebSocket   ResourceType = "websocket"
	TypePing        ResourceType = "ping"
	TypeOther       ResourceType = "other"
)

// ParseResourceType 宽松解析资源类型，未知值归为 other
func ParseResourceType(s string) ResourceType {
	switch ResourceType(s) {
	case TypeDocument, TypeSubdocument, TypeScript, TypeStylesheet, TypeImage,
		TypeMedia, TypeFont, TypeXHR, TypeWebSocket, TypePing:
		return ResourceType(s)
	case "mainFrame", "main_frame":
		return TypeDocument
	case "subFrame", "sub_frame":
		return TypeSubdocument
	case "xmlhttprequest", "fetch":
		return TypeXHR
	}
	return TypeOther
}

// Request 一次待匹配的网络请求
type Request struct {
	URL       string       `json:"url"`
	SourceURL string       `json:"source_url"`
	Type      ResourceType `json:"type"`
}

// MatchResult 匹配结果
type MatchResult struct {
	Matched   bool   `json:"matched"`             // 是否应拦截
	Exception bool   `json:"exception,omitempty"` // 命中了 @@ 例外规则
	Filter    string `json:"filter,omitempty"`    // 命中的规则文本
	Redirect  string `json:"redirect,omitempty"`  // 重定向目标（data: URL）
}

// Cosmetic 某个页面的元素隐藏结果
type Cosmetic struct {
	Styles  string   `json:"styles"`
	Scripts []string `json:"scripts,omitempty"`
}

// UpdateResult 列表更新结果
type UpdateResult struct {
	Success     bool     `json:"success"`
	Updated     bool     `json:"updated"`
	ListsCount  int      `json:"listsCount"`
	Message     string   `json:"message,omitempty"`
	Error       string   `json:"error,omitempty"`
	FailedLists []string `json:"failedLists,omitempty"`
}

// ListInfo metadata.json 中单个列表的记录
type ListInfo struct {
	Size    int       `json:"size"`
	Updated time.Time `json:"updated"`
}

// ListMetadata metadata.json 的完整内容
type ListMetadata struct {
	Lists       map[string]ListInfo `json:"lists"`
	LastUpdated *time.Time          `json:"lastUpdated"`
}

// Status 单个页面视角下的拦截状态
type Status struct {
	Enabled      bool       `json:"enabled"`
	SiteEnabled  bool       `json:"siteEnabled"`
	Host         string     `json:"host"`
	BlockedCount int        `json:"blockedCount"`
	LastUpdated  *time.Time `json:"lastUpdated"`
	ListsCount   int        `json:"listsCount"`
	Ready        bool       `json:"ready"`
	Error        string     `json:"error,omitempty"`
}

// SiteToggle 站点白名单切换结果
type SiteToggle struct {
	Allowlisted bool   `json:"allowlisted"`
	Hostname    string `json:"hostname"`
}

var (
	// ErrNotReady 匹配引擎尚未成功构建
	ErrNotReady = errors.New("adblock engine not ready")
	// ErrNoLists 没有任何列表下载成功
	ErrNoLists = errors.New("failed to download any filter lists")
)
