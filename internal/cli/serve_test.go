package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServe(t *testing.T, env *cliEnv, saveOnExit bool) (string, context.CancelFunc, <-chan error, *bytes.Buffer) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{
			Format:     "text",
			ConfigPath: env.config,
			DBPath:     env.db,
			ParserURL:  env.ps.URL,
		},
		Addr:       "127.0.0.1:0",
		SaveOnExit: saveOnExit,
		Ready:      func(addr string) { ready <- addr },
	}

	done := make(chan error, 1)
	go func() { done <- runServe(opts, "demo", cmd) }()

	select {
	case addr := <-ready:
		return "http://" + addr, cancel, done, buf
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v\n%s", err, buf.String())
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("timeout waiting for listener")
	}
	return "", cancel, done, buf
}

func waitServe(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for serve to stop")
		return nil
	}
}

func TestServeUpdatesAndSavesOnExit(t *testing.T) {
	env := newCLIEnv(t)
	docPath := filepath.Join(env.dir, "demo.yaml")
	writeFile(t, docPath, importDocument)
	env.mustRun(t, "import", docPath, "--name", "demo")

	base, cancel, done, buf := startServe(t, env, true)
	defer cancel()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "demo", health["workflow"])

	resp, err = http.Post(base+"/nodes/2/update", "application/json", strings.NewReader(`{"query":"q"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, waitServe(t, done))
	assert.Contains(t, buf.String(), "Serving demo on http://127.0.0.1:")

	hw := env.node(t, "2")
	assert.Equal(t, []string{"_way_in", "+a"}, pinNames(hw.Inputs))
	assert.Equal(t, "q", hw.Widgets["_query"])
}

func TestServeWithoutSaveOnExit(t *testing.T) {
	env := newCLIEnv(t)
	docPath := filepath.Join(env.dir, "demo.yaml")
	writeFile(t, docPath, importDocument)
	env.mustRun(t, "import", docPath, "--name", "demo")

	base, cancel, done, _ := startServe(t, env, false)
	defer cancel()

	resp, err := http.Post(base+"/nodes/2/update", "application/json", strings.NewReader(`{"query":"q"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, waitServe(t, done))

	hw := env.node(t, "2")
	assert.Equal(t, []string{"_way_in"}, pinNames(hw.Inputs))
}

func TestServeUnknownWorkflow(t *testing.T) {
	env := newCLIEnv(t)
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(buf)

	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", ConfigPath: env.config, DBPath: env.db, ParserURL: env.ps.URL},
		Addr:        "127.0.0.1:0",
	}
	err := runServe(opts, "missing", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E_NOT_FOUND")
}
