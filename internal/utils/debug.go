package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	debugFile *os.File
	debugMu   sync.Mutex
	logsDir   string
)

// ConfigureDebug sets the directory for debug logs. Must be called before
// the first Debug call, otherwise logs go to debug.log in the working dir.
func ConfigureDebug(dir string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	logsDir = dir
}

// Debug writes a timestamped message to the current debug log file.
func Debug(format string, args ...any) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	debugMu.Lock()
	defer debugMu.Unlock()

	if debugFile == nil {
		path := "debug.log"
		if logsDir != "" {
			path = filepath.Join(logsDir, fmt.Sprintf("clipfetch-%s.log", time.Now().Format("20060102-150405")))
		}
		debugFile, _ = os.Create(path)
	}
	if debugFile != nil {
		fmt.Fprintf(debugFile, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
		debugFile.Sync() // Flush immediately
	}
}

// CleanupLogs removes old log files, keeping the most recent `keep` files.
func CleanupLogs(keep int) {
	debugMu.Lock()
	dir := logsDir
	debugMu.Unlock()

	if dir == "" || keep <= 0 {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "clipfetch-") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, e.Name())
		}
	}
	if len(logs) <= keep {
		return
	}

	// Names embed timestamps, so lexical order is chronological
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		os.Remove(filepath.Join(dir, name))
	}
}
