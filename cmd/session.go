package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/agentkernel/society/internal/activity"
	"github.com/agentkernel/society/internal/config"
	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/graph"
	"github.com/agentkernel/society/internal/history"
	"github.com/agentkernel/society/internal/hooks"
	"github.com/agentkernel/society/internal/logging"
	"github.com/agentkernel/society/internal/panel"
	"github.com/agentkernel/society/internal/ui"
	"github.com/agentkernel/society/internal/workspace"
)

var cfgCache *config.Config

func loadConfig() *config.Config {
	if cfgCache == nil {
		cfgCache = config.Load()
	}
	return cfgCache
}

func workspacePath() string {
	if workspaceFlag != "" {
		return workspaceFlag
	}
	return workspace.DefaultPath()
}

// fail prints the error in the failure style and exits 1.
func fail(format string, args ...any) {
	ui.Bad.Printf("  "+format+"\n", args...)
	os.Exit(1)
}

// session is one CLI invocation's view of the workspace.
type session struct {
	cfg     *config.Config
	path    string
	store   *graph.Store
	ctl     *editor.Controller
	hist    *history.Store
	log     *slog.Logger
	changed atomic.Bool
	unsub   func()
}

type sessionOptions struct {
	confirm    editor.Confirmer
	configName string
	// logger overrides the CLI logger, which only reports warnings.
	logger *slog.Logger
}

// openSession loads the workspace and wires the controller to the panel
// client and the snapshot history.
func openSession(opts sessionOptions) *session {
	cfg := loadConfig()
	path := workspacePath()

	store, err := workspace.Open(path)
	if err != nil {
		fail("Failed to load workspace: %v", err)
	}

	log := opts.logger
	if log == nil {
		log = logging.New(logging.Options{Level: "warn", Format: cfg.Log.Format})
	}

	s := &session{cfg: cfg, path: path, store: store, log: log}
	s.unsub = store.Subscribe(func(graph.Change) { s.changed.Store(true) })

	var recorder editor.Recorder
	if cfg.History.Enabled {
		h, err := history.Open(cfg.HistoryPath(), cfg.History.MaxEntries)
		if err != nil {
			log.Warn("history disabled", "err", err)
		} else {
			s.hist = h
			recorder = h
		}
	}

	name := opts.configName
	if name == "" {
		name = cfg.Panel.ConfigName
	}
	s.ctl = editor.New(store, editor.Options{
		ConfigName: name,
		Center:     graph.Position{X: cfg.Editor.CenterX, Y: cfg.Editor.CenterY},
		Spread:     cfg.Editor.Spread,
		Saver:      panel.New(cfg.Panel.URL, time.Duration(cfg.Panel.TimeoutSecs)*time.Second),
		Confirm:    opts.confirm,
		Recorder:   recorder,
		Logger:     log,
	})
	return s
}

// persist writes the workspace back.
func (s *session) persist() error {
	return workspace.Persist(s.path, s.store)
}

// close persists the workspace when anything changed and releases the
// history database.
func (s *session) close() {
	s.unsub()
	if s.changed.Load() {
		if err := s.persist(); err != nil {
			fail("Failed to write workspace: %v", err)
		}
	}
	if s.hist != nil {
		s.hist.Close()
	}
}

// resolveAgent accepts an agent id or a unique case-insensitive name.
func (s *session) resolveAgent(ref string) graph.AgentNode {
	if n, ok := s.store.Node(ref); ok {
		return n
	}
	var matches []graph.AgentNode
	for _, n := range s.store.Nodes() {
		if strings.EqualFold(n.Data.Name, ref) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		fail("No agent %q", ref)
	case 1:
		return matches[0]
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		fail("%q matches several agents (%s); use an id", ref, strings.Join(ids, ", "))
	}
	return graph.AgentNode{}
}

func (s *session) agentName(id string) string {
	if n, ok := s.store.Node(id); ok {
		return n.Data.Name
	}
	return id
}

// logActivity appends to the activity journal; failures are not fatal.
func logActivity(action, target, details string) {
	_ = activity.Log(action, target, details)
}

// runHook runs the configured hook for ev. A failing hook only warns.
func runHook(ev hooks.Event) {
	if err := hooks.Run(context.Background(), loadConfig().Hooks, ev, nil); err != nil {
		fmt.Fprintln(os.Stderr, ui.Warn.Sprintf("  %s %v", ui.WarnIcon(), err))
	}
}

// terminalConfirmer asks on the terminal. Without a TTY it refuses unless
// assumeYes is set.
func terminalConfirmer(assumeYes bool) editor.Confirmer {
	return editor.ConfirmFunc(func(prompt string) bool {
		if assumeYes || !loadConfig().Editor.ConfirmClear {
			return true
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, ui.Subtle.Sprint("  Not a terminal; pass --yes to confirm"))
			return false
		}
		p := promptui.Prompt{Label: prompt, IsConfirm: true}
		_, err := p.Run()
		return err == nil
	})
}
