package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config 全局配置结构体
type Config struct {
	// HostFS 是宿主机文件系统的挂载点
	// 在 Docker 中通常是 "/hostfs"
	// 在宿主机直接运行时应为空 ""
	HostFS string

	// HostSys 是宿主机 /sys 目录的路径
	HostSys string

	// Port 是 HTTP 服务监听端口
	Port string

	// Backend 选择显卡枚举后端: auto, dxgi, nvml, drm, fixture
	Backend string
	// FixturePath 是 fixture 后端读取的 YAML 文件
	FixturePath string

	// ReportBufferSize 是默认报告缓冲区大小（字节）
	ReportBufferSize int
	// TransportMaxUnits 是导出报告的 UTF-16 长度上限
	TransportMaxUnits int

	// JWTSecret 为空时不启用认证
	JWTSecret string
	// APIKeyHash 是换取令牌所用 API Key 的 bcrypt 哈希
	APIKeyHash string

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel         slog.Level
	WSAllowedOrigins []string
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
	once         sync.Once
)

// Load 加载配置
func Load() *Config {
	once.Do(func() {
		GlobalConfig = fromEnv()
	})
	return GlobalConfig
}

func fromEnv() *Config {
	cfg := &Config{
		HostFS:            getEnv("HOST_FS", "/hostfs"),
		HostSys:           getEnv("HOST_SYS", "/hostfs/sys"),
		Port:              getEnv("PORT", "38080"),
		Backend:           getEnv("GPU_BACKEND", "auto"),
		FixturePath:       getEnv("GPU_FIXTURE", ""),
		ReportBufferSize:  getEnvInt("REPORT_BUFFER_SIZE", 1<<20),
		TransportMaxUnits: getEnvInt("TRANSPORT_MAX_UNITS", 65535),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		APIKeyHash:        getEnv("API_KEY_HASH", ""),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		LogLevel:          getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		WSAllowedOrigins:  getEnvList("WS_ALLOWED_ORIGINS"),
	}

	// 如果 HOST_FS 为空（Bare Metal 模式），则调整 /sys 的默认值
	// 但如果用户显式设置了 HOST_SYS，则以用户设置为准
	if cfg.HostFS == "" && os.Getenv("HOST_SYS") == "" {
		cfg.HostSys = "/sys"
	}
	// 容器外运行且挂载点不存在时回退到本机路径
	if cfg.HostFS != "" && os.Getenv("HOST_SYS") == "" {
		if _, err := os.Stat(cfg.HostSys); err != nil {
			cfg.HostFS = ""
			cfg.HostSys = "/sys"
		}
	}
	return cfg
}

// HostPath 将绝对路径转换为宿主机挂载路径
// 例如: HostPath("/usr/share/hwdata/pci.ids") -> "/hostfs/usr/share/hwdata/pci.ids"
func HostPath(path string) string {
	if GlobalConfig == nil {
		Load()
	}

	// 如果 HostFS 为空，直接返回原始路径
	if GlobalConfig.HostFS == "" {
		return path
	}

	// 如果路径已经包含 HostFS 前缀，直接返回
	if strings.HasPrefix(path, GlobalConfig.HostFS) {
		return path
	}

	// 拼接路径
	return filepath.Join(GlobalConfig.HostFS, path)
}

// AuthEnabled 是否启用 JWT 认证
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// getEnv 获取环境变量，如果为空则返回默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		value = strings.ToLower(value)
		return value == "true" || value == "1" || value == "yes" || value == "on"
	}
	return defaultValue
}

// getEnvInt 获取整数类型环境变量，无法解析时返回默认值
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvFloat 获取浮点类型环境变量
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		slog.Warn("invalid number in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvLevel 解析日志级别: debug, info, warn, error
func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	if getEnvBool("DEBUG", false) {
		return slog.LevelDebug
	}
	return defaultValue
}

// getEnvList 解析逗号分隔的列表
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
