package kernel

import (
	"msgqueue/internal/logger"
)

func SystemLogLevel() logger.Level {
	return logger.LevelFromEnv("KERNEL_LOG_LEVEL", logger.ERROR)
}
