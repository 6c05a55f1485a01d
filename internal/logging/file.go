package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// File rotation settings for SetOutputFile.
const (
	fileMaxSizeMB  = 50
	fileMaxBackups = 5
	fileMaxAgeDays = 28
)

// SetOutputFile mirrors log output to a size-rotated file at path in
// addition to stderr. Close the returned io.Closer on shutdown.
func SetOutputFile(path string) io.Closer {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
		Compress:   true,
		LocalTime:  true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}
