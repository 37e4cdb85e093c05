// Package log configures the process-wide apex/log logger.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// InitLogger sets up apex/log with a Handler on stderr and a level from the
// DIAG_LOG env variable, falling back to fallback and then to INFO.
func InitLogger(fallback string) {
	level := strings.ToUpper(os.Getenv("DIAG_LOG"))
	if level == "" {
		level = strings.ToUpper(fallback)
	}
	if level == "" {
		level = "INFO"
	}
	log.SetHandler(NewHandler(os.Stderr))
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
		defer log.Warnf("unknown log level %q, using info", level)
	}
	log.SetLevel(lvl)
}

// Handler writes one line per entry: timestamp, level initial, message and
// the entry fields sorted by name.
type Handler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewHandler returns a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w, now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", h.now().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}
