// Package evidence captures a still image at check-in time. Capture is best
// effort: every failure yields ("", false) and the check-in proceeds.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"attendance-kiosk/internal/metrics"
)

// DefaultCommand grabs one frame with fswebcam after skipping warm-up frames
// so auto-exposure can settle.
const DefaultCommand = "fswebcam --quiet --no-banner --skip 5 -r 640x480 -d {device} {output}"

// Source captures evidence for a roll number. Discard removes a file a
// previous Capture returned that no record will reference.
type Source interface {
	Capture(ctx context.Context, rollNo string) (filename string, ok bool)
	Discard(filename string)
}

// Nop never captures anything.
type Nop struct{}

func (Nop) Capture(context.Context, string) (string, bool) { return "", false }

func (Nop) Discard(string) {}

// Options configure the capture source chosen at startup.
type Options struct {
	Dir       string
	Command   string // template with {output} and {device} placeholders
	Device    string
	Timeout   time.Duration
	MinFreeMB int
}

// New selects a source: Nop when no command is configured or its binary is
// missing, otherwise a Command bounded by opts.Timeout.
func New(opts Options, logger *slog.Logger) Source {
	if strings.TrimSpace(opts.Command) == "" {
		logger.Info("snapshot capture disabled")
		return Nop{}
	}
	cmd, err := NewCommand(opts, logger)
	if err != nil {
		logger.Warn("snapshot capture unavailable", "error", err)
		return Nop{}
	}
	logger.Info("snapshot capture enabled", "binary", cmd.args[0], "dir", opts.Dir)
	if opts.Timeout <= 0 {
		return cmd
	}
	return WithTimeout(cmd, opts.Timeout)
}

// Command runs an external program that writes one image file.
type Command struct {
	dir          string
	args         []string
	device       string
	minFreeBytes uint64
	now          func() time.Time
	logger       *slog.Logger
}

// NewCommand validates the template and creates the snapshot directory.
func NewCommand(opts Options, logger *slog.Logger) (*Command, error) {
	args := strings.Fields(opts.Command)
	if len(args) == 0 {
		return nil, errors.New("empty capture command")
	}
	if !strings.Contains(opts.Command, "{output}") {
		return nil, errors.New("capture command has no {output} placeholder")
	}
	bin, err := exec.LookPath(args[0])
	if err != nil {
		return nil, fmt.Errorf("capture binary %q: %w", args[0], err)
	}
	args[0] = bin
	if opts.Dir == "" {
		opts.Dir = "snapshots"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	var minFree uint64
	if opts.MinFreeMB > 0 {
		minFree = uint64(opts.MinFreeMB) * 1024 * 1024
	}
	return &Command{
		dir:          opts.Dir,
		args:         args,
		device:       opts.Device,
		minFreeBytes: minFree,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// Capture runs the command and returns the written file's base name.
func (c *Command) Capture(ctx context.Context, rollNo string) (string, bool) {
	if c.device != "" && strings.Contains(strings.Join(c.args, " "), "{device}") {
		if _, err := os.Stat(c.device); err != nil {
			metrics.Snapshots.WithLabelValues("skipped").Inc()
			c.logger.Debug("snapshot skipped, no camera device", "device", c.device)
			return "", false
		}
	}
	if c.minFreeBytes > 0 {
		usage, err := disk.UsageWithContext(ctx, c.dir)
		if err != nil || usage.Free < c.minFreeBytes {
			metrics.Snapshots.WithLabelValues("skipped").Inc()
			c.logger.Warn("snapshot skipped, low disk space", "dir", c.dir, "error", err)
			return "", false
		}
	}

	name := FileName(c.now(), rollNo)
	out := filepath.Join(c.dir, name)
	args := make([]string, len(c.args))
	for i, a := range c.args {
		a = strings.ReplaceAll(a, "{output}", out)
		args[i] = strings.ReplaceAll(a, "{device}", c.device)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		result := "failed"
		if ctx.Err() != nil {
			result = "timeout"
		}
		metrics.Snapshots.WithLabelValues(result).Inc()
		c.logger.Warn("snapshot command failed", "roll", rollNo, "error", err, "output", strings.TrimSpace(string(output)))
		return "", false
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		os.Remove(out)
		metrics.Snapshots.WithLabelValues("failed").Inc()
		c.logger.Warn("snapshot command wrote no image", "roll", rollNo)
		return "", false
	}
	metrics.Snapshots.WithLabelValues("captured").Inc()
	return name, true
}

// Discard deletes filename from the snapshot directory.
func (c *Command) Discard(filename string) {
	if filename == "" {
		return
	}
	path := filepath.Join(c.dir, filepath.Base(filename))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("snapshot discard failed", "file", path, "error", err)
	}
}

// FileName is {day}_{roll}_{YYYYMMDD_HHMMSS}.jpg with the roll made safe for
// file names.
func FileName(t time.Time, rollNo string) string {
	return fmt.Sprintf("%s_%s_%s.jpg", t.Format("2006-01-02"), sanitize(rollNo), t.Format("20060102_150405"))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

type timeoutSource struct {
	src Source
	d   time.Duration
}

// WithTimeout bounds how long src may block a check-in. On timeout the
// capture is abandoned and none is returned.
func WithTimeout(src Source, d time.Duration) Source {
	return &timeoutSource{src: src, d: d}
}

type result struct {
	name string
	ok   bool
}

func (t *timeoutSource) Capture(ctx context.Context, rollNo string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		name, ok := t.src.Capture(ctx, rollNo)
		ch <- result{name: name, ok: ok}
	}()

	select {
	case r := <-ch:
		return r.name, r.ok
	case <-ctx.Done():
		metrics.Snapshots.WithLabelValues("timeout").Inc()
		// The capture may still finish and write a file nobody will use.
		go func() {
			if r := <-ch; r.ok {
				t.src.Discard(r.name)
			}
		}()
		return "", false
	}
}

func (t *timeoutSource) Discard(filename string) {
	t.src.Discard(filename)
}
