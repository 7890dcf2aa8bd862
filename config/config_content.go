package config

// DefaultConfigContent 默认配置文件内容，包含详细说明
const DefaultConfigContent = `# adshield 配置文件

# 广告拦截配置
adblock:
  # 是否启用广告拦截（可在运行时通过接口切换，开关状态保存在 data_dir/settings.json）
  enable: true
  # 匹配引擎：urlfilter（完整 ABP/uBO 语法）或 simple（仅域名规则）
  engine: "urlfilter"
  # 数据目录：settings.json、metadata.json 与 lists/ 子目录
  data_dir: "./adshield_data"
  # 过滤列表（名称 -> 地址）。留空时使用内置的 8 个默认列表
  lists:
    - name: "easylist"
      url: "https://easylist.to/easylist/easylist.txt"
    - name: "easyprivacy"
      url: "https://easylist.to/easylist/easyprivacy.txt"
    - name: "ublock_filters"
      url: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/filters.txt"
    - name: "ublock_privacy"
      url: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/privacy.txt"
    - name: "ublock_annoyances"
      url: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/annoyances.txt"
    - name: "ublock_unbreak"
      url: "https://raw.githubusercontent.com/uBlockOrigin/uAssets/master/filters/unbreak.txt"
    - name: "brave_unbreak"
      url: "https://raw.githubusercontent.com/brave/adblock-lists/master/brave-unbreak.txt"
    - name: "peter_lowe"
      url: "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=adblockplus&showintro=0&mimetype=plaintext"
  # 下载时使用的 User-Agent
  user_agent: "adshield/1.0"
  # 单个列表下载超时（秒）
  download_timeout_seconds: 60
  # 小于该字节数的响应视为无效列表
  min_list_bytes: 100
  # 同时下载的列表数量
  max_concurrent_downloads: 8
  # 匹配结果缓存条目数（按 请求类型+来源主机+URL 缓存），引擎重建时清空
  decision_cache_size: 4096
  # 自动更新间隔（小时），非强制更新在该间隔内会被跳过
  update_interval_hours: 24
  # 启动后首次检查更新的延迟（秒）
  startup_update_delay_seconds: 60

# 元素隐藏（CSS/脚本注入）
cosmetic:
  enabled: true
  # 通用清理脚本的扫描间隔（毫秒）
  scan_interval_ms: 2000

# 视频平台广告状态检测
detector:
  enabled: true
  # 播放器状态检测周期（毫秒）
  poll_interval_ms: 250
  # 跳过按钮轮询周期（毫秒）
  skip_poll_interval_ms: 200
  # 广告开始后至少经过多久才允许点击跳过（毫秒）
  min_skip_elapsed_ms: 500
  # 广告视频至少播放到的位置（秒）
  min_playback_seconds: 0.1
  # 跳过按钮最多轮询次数（200ms * 150 ≈ 30 秒）
  skip_timeout_polls: 150
  # 广告期间的播放倍速
  ad_playback_rate: 16
  # 广告期间静音
  mute: true

# 弹窗与遮罩拦截
popup:
  enabled: true
  scan_interval_ms: 1500
  # 定位 iframe 超过该 z-index 即视为弹窗
  iframe_zindex: 999
  # 遮罩层 z-index 阈值与视口面积占比
  overlay_zindex: 50
  overlay_area: 0.15
  # 全屏遮罩 z-index 阈值
  fullscreen_zindex: 100

# 浏览器配置
browser:
  headless: false
  no_sandbox: false
  # 浏览器可执行文件路径，留空自动下载/查找
  bin: ""
  proxy: ""
  # 在每个新文档注入 stealth 脚本
  stealth: true
  # 启动时打开的页面
  start_urls:
    - "about:blank"
  # 启动的独立会话（隐身上下文）数量
  sessions: 1

# 控制接口
webui:
  enabled: true
  listen_port: 8090

# 拦截热点统计（滑动窗口内被拦截最多的主机）
stats:
  # 统计窗口（小时）
  top_hosts_window_hours: 24
  # 每个时间桶的跨度（分钟）
  top_hosts_bucket_minutes: 60
  # 每个桶的分片数
  top_hosts_shard_count: 16
  # 每个桶最多记录的主机数，超出后新主机不再计入
  top_hosts_max_per_bucket: 5000

# 系统配置
system:
  # 日志级别：debug, info, warn, error
  log_level: "info"
  # 日志文件（留空只输出到终端）
  log_file: ""
  log_max_size_mb: 20
  log_max_backups: 3
  log_max_age_days: 7
`
