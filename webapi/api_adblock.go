package webapi

import (
	"encoding/json"
	"net/http"

	"adshield/adblock"
	"adshield/logger"
)

// handleAdBlockStatus 某个页面视角下的拦截状态，tab 与 url 均可省略
func (s *Server) handleAdBlockStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	status := s.manager.GetStatus(q.Get("tab"), q.Get("url"))
	s.writeJSONSuccess(w, "AdBlock status retrieved successfully", status)
}

// handleAdBlockToggle 切换全局开关
func (s *Server) handleAdBlockToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	enabled, err := s.manager.ToggleGlobal()
	if err != nil {
		// 内存中的状态已经生效，只是没能落盘
		logger.Warnf("[AdBlock] Failed to persist global toggle: %v", err)
	}
	s.writeJSONSuccess(w, "AdBlock status updated successfully", map[string]bool{"enabled": enabled})
}

// handleAdBlockSite 切换站点白名单
func (s *Server) handleAdBlockSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Hostname string `json:"hostname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Hostname == "" {
		s.writeJSONError(w, "Hostname cannot be empty", http.StatusBadRequest)
		return
	}

	res, err := s.manager.ToggleSite(payload.Hostname)
	if err != nil {
		logger.Warnf("[AdBlock] Failed to persist allowlist for %s: %v", payload.Hostname, err)
	}
	s.writeJSONSuccess(w, "Site status updated successfully", res)
}

// handleAdBlockUpdate 下载过滤列表并重建引擎，完成后返回结果
func (s *Server) handleAdBlockUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Force *bool `json:"force"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	// 手动更新默认强制
	force := payload.Force == nil || *payload.Force

	s.updateMu.Lock()
	if s.updateBusy {
		s.updateMu.Unlock()
		s.writeJSONError(w, "AdBlock update is already in progress, please wait", http.StatusConflict)
		return
	}
	s.updateBusy = true
	s.updateMu.Unlock()
	defer func() {
		s.updateMu.Lock()
		s.updateBusy = false
		s.updateMu.Unlock()
	}()

	res := s.manager.UpdateFilterLists(r.Context(), force)
	if !res.Success {
		logger.Errorf("[AdBlock] Manual update failed: %s", res.Error)
		s.writeJSONError(w, "AdBlock update failed: "+res.Error, http.StatusBadGateway)
		return
	}
	logger.Infof("[AdBlock] Manual update completed: %+v", res)
	s.writeJSONSuccess(w, "AdBlock lists updated", res)
}

// handleAdBlockLists 列表元数据；DELETE 清空所有列表
func (s *Server) handleAdBlockLists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSONSuccess(w, "AdBlock lists retrieved successfully", s.manager.GetListsInfo())
	case http.MethodDelete:
		if err := s.manager.ClearAllLists(r.Context()); err != nil {
			logger.Errorf("[AdBlock] Failed to clear lists: %v", err)
			s.writeJSONError(w, "Failed to clear lists: "+err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSONSuccess(w, "AdBlock lists cleared", nil)
	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}

// handleAdBlockBlocked 页面拦截计数；DELETE 清零
func (s *Server) handleAdBlockBlocked(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		s.writeJSONError(w, "Missing tab parameter", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSONSuccess(w, "Blocked count retrieved successfully", map[string]int{
			"blockedCount": s.manager.GetBlockedCount(tab),
		})
	case http.MethodDelete:
		s.manager.ResetBlockedCount(tab)
		s.writeJSONSuccess(w, "Blocked count reset", nil)
	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}

// handleAdBlockTest 测试某个请求是否会被拦截，不计入统计
func (s *Server) handleAdBlockTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		URL       string `json:"url"`
		SourceURL string `json:"source_url"`
		Type      string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.URL == "" {
		s.writeJSONError(w, "URL cannot be empty", http.StatusBadRequest)
		return
	}

	res := s.manager.TestRequest(payload.URL, payload.SourceURL, adblock.ParseResourceType(payload.Type))
	s.writeJSONSuccess(w, "AdBlock test completed", res)
}

func (s *Server) handleAdBlockRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	recent := s.manager.RecentlyBlocked()
	if recent == nil {
		recent = []string{}
	}
	s.writeJSONSuccess(w, "Recently blocked retrieved successfully", recent)
}

func (s *Server) handleAdBlockStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSONSuccess(w, "AdBlock stats retrieved successfully", s.manager.Stats())
}
