package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process-wide JSON logger. With a non-empty logFile
// the output additionally goes to a size-rotated file, so long-running
// cache nodes do not fill their own disk with logs.
func NewLogger(logFile string) *slog.Logger {
	var out io.Writer = os.Stdout
	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(out, nil))
}
