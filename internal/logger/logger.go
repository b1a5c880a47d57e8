package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfunc/obscura/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 模块名
const (
	ModuleRules     = "rules"
	ModuleStore     = "store"
	ModuleWebSocket = "websocket"
	ModuleTable     = "table"
	ModuleAPI       = "api"
	ModuleDatabase  = "database"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
	mu     sync.RWMutex

	// 全局日志级别，支持热更新
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// 未初始化时使用的默认日志器
	fallback     *zap.Logger
	fallbackOnce sync.Once

	// 模块日志器
	moduleLoggers map[string]*zap.Logger
)

// Init 初始化日志系统
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		level.SetLevel(parseLevel(cfg.Level))

		// 创建编码器配置
		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		// 根据格式选择编码器
		var encoder zapcore.Encoder
		if cfg.Format == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}

		var cores []zapcore.Core
		var sinks []zapcore.WriteSyncer

		// 控制台输出
		if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
			sinks = append(sinks, zapcore.AddSync(os.Stdout))
		}

		// 文件输出
		if cfg.Output == "file" || cfg.Output == "both" {
			logDir := cfg.File.Path
			if err = os.MkdirAll(logDir, 0755); err != nil {
				return
			}

			// 创建文件写入器（支持日志轮转）
			sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(logDir, cfg.File.Filename),
				MaxSize:    cfg.File.MaxSize,
				MaxAge:     cfg.File.MaxAge,
				MaxBackups: cfg.File.MaxBackups,
				Compress:   cfg.File.Compress,
			}))

			// 错误日志单独一个文件
			cores = append(cores, zapcore.NewCore(
				encoder,
				zapcore.AddSync(&lumberjack.Logger{
					Filename:   filepath.Join(logDir, "error.log"),
					MaxSize:    cfg.File.MaxSize,
					MaxAge:     cfg.File.MaxAge,
					MaxBackups: cfg.File.MaxBackups,
					Compress:   cfg.File.Compress,
				}),
				zapcore.ErrorLevel,
			))
		}

		sink := zapcore.NewMultiWriteSyncer(sinks...)
		cores = append(cores, zapcore.NewCore(encoder, sink, level))

		built := zap.New(
			zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)

		// 模块日志器：单独的级别，共享输出
		modules := make(map[string]*zap.Logger, len(cfg.Modules))
		for module, levelStr := range cfg.Modules {
			moduleCore := zapcore.NewCore(encoder, sink, parseLevel(levelStr))
			modules[module] = zap.New(moduleCore, zap.AddCaller()).Named(module)
		}

		mu.Lock()
		logger = built
		sugar = built.Sugar()
		moduleLoggers = modules
		mu.Unlock()
	})

	return err
}

// parseLevel 解析日志级别
func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger 获取日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		fallbackOnce.Do(func() {
			fallback, _ = zap.NewProduction()
			if fallback == nil {
				fallback = zap.NewNop()
			}
		})
		return fallback
	}
	return logger
}

// GetSugar 获取Sugar日志器
func GetSugar() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s == nil {
		return GetLogger().Sugar()
	}
	return s
}

// WithModule 获取模块日志器，未单独配置级别的模块使用全局日志器
func WithModule(module string) *zap.Logger {
	mu.RLock()
	moduleLogger, ok := moduleLoggers[module]
	mu.RUnlock()
	if ok {
		return moduleLogger
	}
	return GetLogger().Named(module)
}

// SetLevel 动态设置全局日志级别
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()

	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Infof 格式化输出信息日志
func Infof(template string, args ...interface{}) {
	GetSugar().Infof(template, args...)
}

// LogRequest 记录请求日志
func LogRequest(method, path string, statusCode int, latency time.Duration, clientIP string) {
	WithModule(ModuleAPI).Info("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	)
}

// LogPanic 记录panic日志
func LogPanic(recovered interface{}, stack []byte) {
	GetLogger().Error("panic recovered",
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	)
}

// LogRollEvent 记录一次掷骰/检定
func LogRollEvent(l *zap.Logger, sessionID, kind string, data map[string]interface{}) {
	if l == nil {
		l = WithModule(ModuleRules)
	}
	l.Info("roll_event",
		zap.String("session_id", sessionID),
		zap.String("kind", kind),
		zap.Any("data", data),
	)
}

// LogSyncOperation 记录一次文档存储操作，失败时以 warn 输出
func LogSyncOperation(l *zap.Logger, operation, path string, duration time.Duration, err error) {
	if l == nil {
		l = WithModule(ModuleStore)
	}
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("path", path),
		zap.Duration("duration", duration),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		l.Warn("sync_operation_failed", fields...)
	} else {
		l.Debug("sync_operation", fields...)
	}
}

// LogWebSocketMessage 记录WebSocket消息
func LogWebSocketMessage(l *zap.Logger, direction, messageType string, payload interface{}) {
	if l == nil {
		l = WithModule(ModuleWebSocket)
	}
	l.Debug("ws_message",
		zap.String("direction", direction), // "send" or "receive"
		zap.String("type", messageType),
		zap.Any("payload", payload),
	)
}

// Cleanup 清理日志资源
func Cleanup() {
	if err := Sync(); err != nil {
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}
