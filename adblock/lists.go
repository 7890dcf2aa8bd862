package adblock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"adshield/logger"
)

const defaultUpdateInterval = 24 * time.Hour

// ListUpdater 并发下载固定的列表集合，按新鲜度节流，合并并发调用
type ListUpdater struct {
	sources       []ListSource
	storage       *ListStorage
	loader        *RuleLoader
	interval      time.Duration
	maxConcurrent int
	group         singleflight.Group
	now           func() time.Time
}

// NewListUpdater 创建更新器
func NewListUpdater(sources []ListSource, storage *ListStorage, loader *RuleLoader, interval time.Duration, maxConcurrent int) *ListUpdater {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &ListUpdater{
		sources:       sources,
		storage:       storage,
		loader:        loader,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// UpdateLists 更新所有列表。并发调用（无论 force 与否）共享同一次进行中的更新，
// 共享的下载不随发起者的 ctx 取消。
func (u *ListUpdater) UpdateLists(ctx context.Context, force bool) UpdateResult {
	v, _, _ := u.group.Do("update", func() (interface{}, error) {
		return u.update(context.WithoutCancel(ctx), force), nil
	})
	return v.(UpdateResult)
}

func (u *ListUpdater) update(ctx context.Context, force bool) UpdateResult {
	if !force {
		if last := u.storage.LastUpdated(); last != nil && u.now().Sub(*last) < u.interval {
			logger.Debugf("[Lists] Lists are fresh (updated %s), skipping", last.Format(time.RFC3339))
			return UpdateResult{
				Success:    true,
				Updated:    false,
				ListsCount: len(u.storage.ListNames()),
				Message:    "Lists are up to date",
			}
		}
	}

	logger.Infof("[Lists] Updating %d filter lists (force=%v)", len(u.sources), force)
	start := time.Now()

	// Phase 1: download everything concurrently, bounded by a semaphore
	type downloaded struct {
		name    string
		content string
	}
	sem := make(chan struct{}, u.maxConcurrent)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     []downloaded
		failed []string
	)
	for _, src := range u.sources {
		wg.Add(1)
		go func(src ListSource) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				failed = append(failed, src.Name)
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			content, err := u.loader.Download(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnf("[Lists] Failed to download %s: %v", src.Name, err)
				failed = append(failed, src.Name)
				return
			}
			ok = append(ok, downloaded{name: src.Name, content: content})
		}(src)
	}
	wg.Wait()
	sort.Strings(failed)

	if len(ok) == 0 {
		logger.Errorf("[Lists] %v", ErrNoLists)
		return UpdateResult{
			Success:     false,
			Error:       ErrNoLists.Error(),
			FailedLists: failed,
		}
	}

	// Phase 2: save after the join
	saved := 0
	for _, d := range ok {
		if err := u.storage.SaveList(d.name, d.content); err != nil {
			logger.Errorf("[Lists] %v", err)
			failed = append(failed, d.name)
			continue
		}
		logger.Debugf("[Lists] Saved %s (%d rules)", d.name, countRules(d.content))
		saved++
	}
	if saved == 0 {
		return UpdateResult{Success: false, Error: ErrNoLists.Error(), FailedLists: failed}
	}
	if err := u.storage.MarkUpdated(u.now()); err != nil {
		logger.Warnf("[Lists] Failed to save metadata: %v", err)
	}

	logger.Infof("[Lists] Updated %d/%d lists in %.1fs", saved, len(u.sources), time.Since(start).Seconds())
	return UpdateResult{
		Success:     true,
		Updated:     true,
		ListsCount:  saved,
		FailedLists: failed,
	}
}

// EnsureListsExist 已有任一列表时立即返回 true，否则强制更新一次
func (u *ListUpdater) EnsureListsExist(ctx context.Context) bool {
	if u.storage.HasAnyList() {
		return true
	}
	logger.Infof("[Lists] No cached lists, downloading")
	return u.UpdateLists(ctx, true).Success
}

// CombinedRules 所有已保存列表加上补充规则，按行拼接
func (u *ListUpdater) CombinedRules() []string {
	rules := u.storage.ReadAllRules()
	return append(rules, SupplementaryRules()...)
}

// CombinedRulesText 同 CombinedRules，返回单个字符串
func (u *ListUpdater) CombinedRulesText() string {
	return strings.Join(u.CombinedRules(), "\n")
}

// ClearAllLists 删除所有列表与元数据
func (u *ListUpdater) ClearAllLists() error {
	return u.storage.ClearAll()
}
