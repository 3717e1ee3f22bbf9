// Package debug provides a process-wide, opt-in trace logger. It is not a
// general logging framework: cratedocs has exactly one audience for these
// lines (an operator chasing a build or request problem), so a single gated
// writer is enough.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EnableDebug can be flipped at build time:
//
//	go build -ldflags "-X github.com/standardbeagle/cratedocs/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
	once   sync.Once
)

func initFromEnv() {
	if EnableDebug == "true" || os.Getenv("CRATEDOCS_DEBUG") != "" {
		output = os.Stderr
	}
}

// SetOutput overrides the debug writer. Pass nil to disable.
func SetOutput(w io.Writer) {
	once.Do(initFromEnv)
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Logf writes a timestamped trace line when debugging is enabled; it is a
// no-op otherwise.
func Logf(format string, args ...any) {
	once.Do(initFromEnv)
	mu.Lock()
	w := output
	mu.Unlock()
	if w == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}
