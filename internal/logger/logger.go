package logger

import (
	"fmt"
	"strings"
	"time"

	"crowdfund/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig 日志文件轮转配置
type RotationConfig struct {
	Filename   string // 日志文件路径
	MaxSize    int    // 单个文件最大大小（MB）
	MaxBackups int    // 保留的旧文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧文件
}

// New 根据配置创建 zap 日志器
// output 为 file 时写入 lumberjack 轮转文件，否则输出到标准输出
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Output, "file") {
		return NewWithRotation(level, RotationConfig{Filename: cfg.File, Compress: true}), nil
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig = encoderConfig()
	if level == zapcore.DebugLevel {
		zapCfg.Development = true
		zapCfg.Sampling = nil
	}
	return zapCfg.Build()
}

// NewWithRotation 创建写入轮转文件的日志器
func NewWithRotation(level zapcore.Level, rc RotationConfig) *zap.Logger {
	if rc.MaxSize == 0 {
		rc.MaxSize = 100
	}
	if rc.MaxBackups == 0 {
		rc.MaxBackups = 3
	}
	if rc.MaxAge == 0 {
		rc.MaxAge = 28
	}

	writer := &lumberjack.Logger{
		Filename:   rc.Filename,
		MaxSize:    rc.MaxSize,
		MaxBackups: rc.MaxBackups,
		MaxAge:     rc.MaxAge,
		Compress:   rc.Compress,
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(writer), level)
	return zap.New(core, zap.AddCaller())
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.LevelKey = "level"
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.MessageKey = "message"
	return ec
}

// ParseLevel 解析日志级别字符串，空字符串按 info 处理
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("未知的日志级别: %s", level)
	}
}
