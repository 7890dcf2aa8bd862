// Package webapi exposes the adblock control surface over HTTP.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"adshield/adblock"
	"adshield/browser"
	"adshield/config"
	"adshield/logger"
	"adshield/stats"
)

// APIResponse 统一的 API 响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// TabLister 列出浏览器中打开的标签页
type TabLister interface {
	Tabs() []browser.TabInfo
}

// Server Web API 服务器
type Server struct {
	cfg     *config.Config
	manager *adblock.Manager
	stats   *stats.Stats
	tabs    TabLister

	listener http.Server

	// 同一时间只允许一次列表更新
	updateMu   sync.Mutex
	updateBusy bool
}

// NewServer 创建新的 Web API 服务器。tabs 可以为 nil（未启动浏览器）
func NewServer(cfg *config.Config, manager *adblock.Manager, st *stats.Stats, tabs TabLister) *Server {
	return &Server{
		cfg:     cfg,
		manager: manager,
		stats:   st,
		tabs:    tabs,
	}
}

// Handler 构建路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/adblock/status", s.handleAdBlockStatus)
	mux.HandleFunc("/api/adblock/toggle", s.handleAdBlockToggle)
	mux.HandleFunc("/api/adblock/site", s.handleAdBlockSite)
	mux.HandleFunc("/api/adblock/update", s.handleAdBlockUpdate)
	mux.HandleFunc("/api/adblock/lists", s.handleAdBlockLists)
	mux.HandleFunc("/api/adblock/blocked", s.handleAdBlockBlocked)
	mux.HandleFunc("/api/adblock/test", s.handleAdBlockTest)
	mux.HandleFunc("/api/adblock/recent", s.handleAdBlockRecent)
	mux.HandleFunc("/api/adblock/stats", s.handleAdBlockStats)

	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/clear", s.handleClearStats)
	mux.HandleFunc("/api/system", s.handleSystem)
	mux.HandleFunc("/api/browser/tabs", s.handleTabs)
	mux.HandleFunc("/health", s.handleHealth)

	return s.corsMiddleware(mux)
}

// Start 启动 Web API 服务，阻塞直到服务停止
func (s *Server) Start() error {
	if !s.cfg.WebUI.Enabled {
		logger.Info("WebAPI is disabled")
		return nil
	}

	s.listener = http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.WebUI.ListenPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Web API server started on http://localhost:%d", s.cfg.WebUI.ListenPort)
	if err := s.listener.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，最多等待 5 秒
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down Web API server...")
	return s.listener.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Message: message,
	})
}

func (s *Server) writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy"}`)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if s.stats == nil {
		s.writeJSONError(w, "Stats are not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSONSuccess(w, "Stats retrieved successfully", s.stats.GetStats())
}

func (s *Server) handleClearStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if s.stats != nil {
		s.stats.Reset()
	}
	logger.Info("Statistics cleared via API request.")
	s.writeJSONSuccess(w, "All stats cleared successfully", nil)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSONSuccess(w, "System stats retrieved successfully", stats.SystemStats())
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if s.tabs == nil {
		s.writeJSONError(w, "Browser is not running", http.StatusServiceUnavailable)
		return
	}
	tabs := s.tabs.Tabs()
	if tabs == nil {
		tabs = []browser.TabInfo{}
	}
	s.writeJSONSuccess(w, "Tabs retrieved successfully", tabs)
}
