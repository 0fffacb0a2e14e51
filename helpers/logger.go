package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sjsage522/communitysync/logger"
)

// FailureRecorder collects per-record failures for the end-of-run summary
type FailureRecorder interface {
	LogError(identifier string, err error)
	Failures() []Failure
}

// Failure is one record the pipeline could not process
type Failure struct {
	Identifier string
	Err        error
	Time       time.Time
}

// FailureLog keeps failures in memory and appends them to a file
type FailureLog struct {
	mu        sync.Mutex
	errorFile string
	failures  []Failure
}

// NewFailureLog creates a new failure log. An empty path keeps failures in memory only.
func NewFailureLog(errorFile string) *FailureLog {
	return &FailureLog{
		errorFile: errorFile,
	}
}

// LogError records a failure and appends it to the error file with a timestamp
func (l *FailureLog) LogError(identifier string, err error) {
	now := time.Now()

	l.mu.Lock()
	l.failures = append(l.failures, Failure{Identifier: identifier, Err: err, Time: now})
	l.mu.Unlock()

	if l.errorFile == "" {
		return
	}
	if dirErr := os.MkdirAll(filepath.Dir(l.errorFile), 0755); dirErr != nil {
		logger.Warn("failed to create failure log directory: %v", dirErr)
		return
	}
	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.Warn("failed to open failure log: %v", fileErr)
		return
	}
	defer f.Close()

	timestamp := now.Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, identifier, err.Error())
}

// Failures returns a copy of the recorded failures in order
func (l *FailureLog) Failures() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, len(l.failures))
	copy(out, l.failures)
	return out
}
