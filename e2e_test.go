//go:build e2e

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var societyBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "society-e2e-*")
	if err != nil {
		panic("failed to create temp dir: " + err.Error())
	}
	defer os.RemoveAll(tmp)

	societyBin = filepath.Join(tmp, "society")
	build := exec.Command("go", "build", "-ldflags", "-X github.com/agentkernel/society/cmd.version=0.3.0-test", "-o", societyBin, ".")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		panic("failed to build society: " + err.Error())
	}

	os.Exit(m.Run())
}

// run executes the society binary against home, which holds the config,
// workspace and history.
func run(t *testing.T, home string, env []string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(societyBin, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"NO_COLOR=1",
		"SOCIETY_PANEL_URL=http://127.0.0.1:1/api",
	)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdin = strings.NewReader("")

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("failed to run society %v: %v", args, err)
		}
	}
	return outBuf.String(), errBuf.String(), exitCode
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, errOut, code := run(t, home, nil, args...)
	if code != 0 {
		t.Fatalf("society %v: exit %d\nstdout: %s\nstderr: %s", args, code, out, errOut)
	}
	return out
}

type status struct {
	Agents    int    `json:"agents"`
	Relations int    `json:"relations"`
	State     string `json:"state"`
	Selection struct {
		NodeID string `json:"node_id"`
		EdgeID string `json:"edge_id"`
	} `json:"selection"`
}

func readStatus(t *testing.T, home string) status {
	t.Helper()
	var st status
	if err := json.Unmarshal([]byte(mustRun(t, home, "status", "--json")), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// --- Core CLI ---

func TestE2E_Version(t *testing.T) {
	out := mustRun(t, t.TempDir(), "--version")
	if !strings.Contains(out, "0.3.0-test") {
		t.Errorf("expected version output to contain '0.3.0-test', got %q", out)
	}
}

func TestE2E_Help(t *testing.T) {
	out := mustRun(t, t.TempDir(), "--help")
	if !strings.Contains(out, "Available Commands") {
		t.Errorf("expected help to contain 'Available Commands', got %q", out)
	}
}

func TestE2E_EmptyWorkspace(t *testing.T) {
	home := t.TempDir()
	out := mustRun(t, home, "agent", "list")
	if !strings.Contains(out, "No agents yet") {
		t.Errorf("expected empty hint, got %q", out)
	}
	st := readStatus(t, home)
	if st.Agents != 0 || st.State != "clean" {
		t.Errorf("expected empty clean session, got %+v", st)
	}
}

// --- Editing ---

func TestE2E_EditFlow(t *testing.T) {
	home := t.TempDir()

	mustRun(t, home, "agent", "add", "--name", "Alice", "--role", "researcher", "--trait", "openness=0.9")
	mustRun(t, home, "agent", "add", "--name", "Bob")
	out := mustRun(t, home, "relate", "Alice", "Bob", "--type", "friend", "--weight", "0.7")
	if !strings.Contains(out, "friend") {
		t.Errorf("expected relation type in output, got %q", out)
	}

	st := readStatus(t, home)
	if st.Agents != 2 || st.Relations != 1 || st.State != "dirty" {
		t.Fatalf("unexpected status %+v", st)
	}

	out = mustRun(t, home, "agent", "show", "Alice")
	if !strings.Contains(out, "Bob") {
		t.Errorf("expected Bob among Alice's relations, got %q", out)
	}

	mustRun(t, home, "select", "node", "alice")
	mustRun(t, home, "delete")
	st = readStatus(t, home)
	if st.Agents != 1 || st.Relations != 0 {
		t.Errorf("expected cascade delete, got %+v", st)
	}
	if st.Selection.NodeID != "" {
		t.Errorf("expected selection cleared, got %q", st.Selection.NodeID)
	}
}

func TestE2E_InvalidInput(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")

	if _, _, code := run(t, home, nil, "agent", "add", "--trait", "openness=2"); code == 0 {
		t.Error("expected non-zero exit for out-of-range trait")
	}
	if _, _, code := run(t, home, nil, "relate", "Alice", "Nobody"); code == 0 {
		t.Error("expected non-zero exit for unknown agent")
	}
	if _, _, code := run(t, home, nil, "relate", "Alice", "Alice", "--weight", "-3"); code == 0 {
		t.Error("expected non-zero exit for out-of-range weight")
	}
	if st := readStatus(t, home); st.Agents != 1 || st.Relations != 0 {
		t.Errorf("failed commands changed the graph: %+v", st)
	}
}

func TestE2E_ClearNeedsConfirmation(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add")

	out := mustRun(t, home, "clear")
	if !strings.Contains(out, "Cancelled") {
		t.Errorf("expected cancellation without a terminal, got %q", out)
	}
	if st := readStatus(t, home); st.Agents != 1 {
		t.Fatalf("clear without confirmation removed agents: %+v", st)
	}

	mustRun(t, home, "clear", "--yes")
	if st := readStatus(t, home); st.Agents != 0 {
		t.Errorf("expected empty graph, got %+v", st)
	}
}

// --- Documents ---

func TestE2E_ExportImportRoundTrip(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")
	mustRun(t, home, "agent", "add", "--name", "Bob")
	mustRun(t, home, "relate", "Alice", "Bob", "--type", "rival", "--weight", "-0.4")

	file := filepath.Join(t.TempDir(), "team.json")
	mustRun(t, home, "export", "-o", file)
	if st := readStatus(t, home); st.State != "clean" {
		t.Errorf("expected export to mark the session clean, got %q", st.State)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Version   string            `json:"version"`
		Agents    []json.RawMessage `json:"agents"`
		Relations []json.RawMessage `json:"relations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc.Version != "1.0" || len(doc.Agents) != 2 || len(doc.Relations) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}

	mustRun(t, home, "clear", "--yes")
	mustRun(t, home, "import", file)
	if st := readStatus(t, home); st.Agents != 2 || st.Relations != 1 {
		t.Errorf("expected round trip, got %+v", st)
	}

	yamlOut := mustRun(t, home, "export", "--format", "yaml")
	if !strings.HasPrefix(yamlOut, "version:") {
		t.Errorf("expected YAML document, got %q", yamlOut)
	}
	dot := mustRun(t, home, "export", "--format", "dot")
	if !strings.Contains(dot, "digraph") {
		t.Errorf("expected DOT output, got %q", dot)
	}
}

func TestE2E_ImportRejectsInvalid(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Keep")

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":"1.0","agents":[{"id":"a"}],"relations":[{"source":"a","target":"x"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, code := run(t, home, nil, "import", bad); code == 0 {
		t.Fatal("expected non-zero exit for dangling relation")
	}
	if st := readStatus(t, home); st.Agents != 1 {
		t.Errorf("failed import changed the graph: %+v", st)
	}

	broken := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(broken, []byte(`{"version":"1.0","agents":[{"id":"a","name":"A",}],}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, code := run(t, home, nil, "import", broken); code == 0 {
		t.Fatal("expected trailing commas to fail without --repair")
	}
	mustRun(t, home, "import", broken, "--repair")
	if st := readStatus(t, home); st.Agents != 1 {
		t.Errorf("expected repaired import, got %+v", st)
	}
}

func TestE2E_Save(t *testing.T) {
	var gotPath string
	var gotBody []byte
	panel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer panel.Close()

	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")

	env := []string{"SOCIETY_PANEL_URL=" + panel.URL + "/api"}
	out, errOut, code := run(t, home, env, "save", "--name", "town")
	if code != 0 {
		t.Fatalf("save failed: %s %s", out, errOut)
	}
	if gotPath != "/api/configs/town" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(string(gotBody), "Alice") {
		t.Errorf("expected document in body, got %s", gotBody)
	}
	if st := readStatus(t, home); st.State != "clean" {
		t.Errorf("expected clean after save, got %q", st.State)
	}
}

func TestE2E_SaveFailureStaysDirty(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add")

	if _, _, code := run(t, home, nil, "save"); code == 0 {
		t.Fatal("expected non-zero exit when the panel is unreachable")
	}
	if st := readStatus(t, home); st.State != "dirty" {
		t.Errorf("expected dirty after failed save, got %q", st.State)
	}
}

func TestE2E_History(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")
	mustRun(t, home, "export", "-o", filepath.Join(t.TempDir(), "a.json"))

	out := mustRun(t, home, "history", "list")
	if !strings.Contains(out, "export") {
		t.Errorf("expected export snapshot, got %q", out)
	}
}

func TestE2E_PublishSimData(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")
	mustRun(t, home, "agent", "add", "--name", "Bob")
	mustRun(t, home, "relate", "Alice", "Bob", "--weight", "0.8")

	dir := t.TempDir()
	mustRun(t, home, "publish", "--simdata", dir)
	for _, f := range []string{
		"data/agent/profiles.jsonl",
		"data/relationship/nodes.jsonl",
		"data/relationship/edges.jsonl",
		"configs/simulation_config.yaml",
	} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s: %v", f, err)
		}
	}
}

// --- Misc ---

func TestE2E_ConfigPath(t *testing.T) {
	out := mustRun(t, t.TempDir(), "config", "path")
	if !strings.Contains(out, "workspace") {
		t.Errorf("expected workspace path, got %q", out)
	}
}

func TestE2E_CompletionZsh(t *testing.T) {
	out := mustRun(t, t.TempDir(), "completion", "zsh")
	if len(out) == 0 {
		t.Error("expected zsh completion output, got empty")
	}
}

func TestE2E_Log(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "agent", "add", "--name", "Alice")
	out := mustRun(t, home, "log")
	if !strings.Contains(out, "agent.add") {
		t.Errorf("expected agent.add entry, got %q", out)
	}
}
