package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init cấu hình global logger. LOG_LEVEL (debug|info|warn|error) ghi đè
// level mặc định; giá trị lạ giữ info.
func Init(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLevel đọc level từ chuỗi env, mặc định info
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func Info(msg string, fields map[string]interface{}) {
	log.Info().Fields(fields).Msg(msg)
}

func Debug(msg string) {
	log.Debug().Msg(msg)
}

// Warn dùng cho lỗi đã được xử lý tiếp (fallback, drift, enqueue hỏng)
func Warn(msg string, err error, fields map[string]interface{}) {
	log.Warn().Err(err).Fields(fields).Msg(msg)
}

func Error(msg string, err error) {
	log.Error().Err(err).Msg(msg)
}
