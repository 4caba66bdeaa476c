package hooks

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/agentkernel/society/internal/config"
)

// Phases a hook can be attached to.
const (
	PostExport  = "post_export"
	PostSave    = "post_save"
	PostImport  = "post_import"
	PostPublish = "post_publish"
	PostClear   = "post_clear"
)

// Event describes the document I/O that triggered a hook.
type Event struct {
	Phase      string
	ConfigName string
	Target     string // file, config name or publish target list
	Agents     int
	Relations  int
}

func (e Event) env() []string {
	return []string{
		"SOCIETY_PHASE=" + e.Phase,
		"SOCIETY_CONFIG_NAME=" + e.ConfigName,
		"SOCIETY_TARGET=" + e.Target,
		"SOCIETY_AGENTS=" + strconv.Itoa(e.Agents),
		"SOCIETY_RELATIONS=" + strconv.Itoa(e.Relations),
	}
}

// Run executes the hook script for ev.Phase, if configured. Script output
// goes to out, or stderr when out is nil, so stdout exports stay clean.
func Run(ctx context.Context, h config.HooksConfig, ev Event, out io.Writer) error {
	script := Script(h, ev.Phase)
	if script == "" {
		return nil
	}
	if out == nil {
		out = os.Stderr
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Env = append(os.Environ(), ev.env()...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s hook: %w", ev.Phase, err)
	}
	return nil
}

// Script returns the script configured for phase.
func Script(h config.HooksConfig, phase string) string {
	switch phase {
	case PostExport:
		return h.PostExport
	case PostSave:
		return h.PostSave
	case PostImport:
		return h.PostImport
	case PostPublish:
		return h.PostPublish
	case PostClear:
		return h.PostClear
	default:
		return ""
	}
}
