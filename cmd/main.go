package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"adshield/adblock"
	"adshield/browser"
	"adshield/config"
	"adshield/internal/util"
	"adshield/logger"
	"adshield/stats"
	"adshield/webapi"
)

func main() {
	configPath := flag.String("c", "config.yaml", "配置文件路径")
	workDir := flag.String("w", "", "工作目录")
	noBrowser := flag.Bool("no-browser", false, "只启动拦截引擎与控制接口，不启动浏览器")
	help := flag.Bool("h", false, "显示帮助信息")

	flag.Parse()

	if *help {
		printHelp()
		os.Exit(0)
	}

	effectiveWorkDir := *workDir
	if effectiveWorkDir == "" {
		var err error
		effectiveWorkDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "错误：无法获取当前工作目录：%v\n", err)
			os.Exit(1)
		}
	}

	effectiveConfigPath := *configPath
	if !filepath.IsAbs(effectiveConfigPath) {
		effectiveConfigPath = filepath.Join(effectiveWorkDir, effectiveConfigPath)
	}

	// 先加载配置以获取日志设置
	cfg, err := config.LoadConfig(effectiveConfigPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// 相对数据目录按工作目录解析
	if !filepath.IsAbs(cfg.AdBlock.DataDir) {
		cfg.AdBlock.DataDir = filepath.Join(effectiveWorkDir, cfg.AdBlock.DataDir)
	}

	logger.Init(logger.Options{
		Level:      cfg.System.LogLevel,
		File:       cfg.System.LogFile,
		MaxSizeMB:  cfg.System.LogMaxSizeMB,
		MaxBackups: cfg.System.LogMaxBackups,
		MaxAgeDays: cfg.System.LogMaxAgeDays,
	})
	defer logger.Sync()
	logger.Infof("Config loaded from %s, log level %s", effectiveConfigPath, cfg.System.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := stats.NewStats(cfg.Stats)
	defer s.Stop()

	manager, err := adblock.NewManager(&cfg.AdBlock)
	if err != nil {
		logger.Fatalf("Failed to create adblock manager: %v", err)
	}
	manager.SetBlockHook(func(req adblock.InterceptedRequest, _ adblock.MatchResult) {
		s.RecordBlocked(util.HostnameOf(req.URL), string(req.ResourceType))
	})
	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("Failed to start adblock manager: %v", err)
	}
	defer manager.Close()

	var (
		b    *browser.Browser
		tabs webapi.TabLister
	)
	if !*noBrowser {
		b, err = browser.Launch(cfg, manager)
		if err != nil {
			logger.Fatalf("Failed to launch browser: %v", err)
		}
		tabs = b
		openSessions(ctx, b, cfg.Browser)
	}

	var webServer *webapi.Server
	if cfg.WebUI.Enabled {
		webServer = webapi.NewServer(cfg, manager, s, tabs)
		go func() {
			if err := webServer.Start(); err != nil {
				logger.Errorf("Web API server failed: %v", err)
			}
		}()
	}

	// 设置优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if webServer != nil {
		if err := webServer.Stop(); err != nil {
			logger.Errorf("Failed to stop Web API server: %v", err)
		}
	}

	if b != nil {
		done := make(chan error, 1)
		go func() { done <- b.Close() }()
		select {
		case err := <-done:
			if err != nil {
				logger.Warnf("Browser closed with errors: %v", err)
			}
		case <-time.After(10 * time.Second):
			logger.Warn("Browser shutdown timeout.")
		}
	}

	cancel()
	logger.Info("Gracefully stopped.")
}

// openSessions 按配置创建会话，并在第一个会话中打开起始页面
func openSessions(ctx context.Context, b *browser.Browser, cfg config.BrowserConfig) {
	for i := 0; i < cfg.Sessions; i++ {
		sess, err := b.NewSession(ctx)
		if err != nil {
			logger.Errorf("Failed to create session: %v", err)
			continue
		}
		if i > 0 {
			continue
		}
		for _, u := range cfg.StartURLs {
			if _, err := sess.OpenTab(ctx, u); err != nil {
				logger.Warnf("Failed to open %s: %v", u, err)
			}
		}
	}
}

func printHelp() {
	fmt.Print(`adshield - 基于 Chromium 的广告拦截浏览器

使用方法：
  adshield [选项]

选项：
  -c <路径>       配置文件路径（默认：config.yaml，不存在时自动生成）
  -w <路径>       工作目录（默认：当前目录）
  -no-browser     只运行拦截引擎与控制接口
  -h              显示此帮助信息

示例：
  adshield -c ./config.yaml
  curl -X POST http://localhost:8090/api/adblock/toggle
`)
}
