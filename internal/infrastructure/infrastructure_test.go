package infrastructure

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Francouer/proto-watch/internal/domain"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func quietLogger() *ColorLogger {
	return NewColorLoggerWithWriter(io.Discard, false)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestColorLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewColorLoggerWithWriter(&buf, false)

	logger.Info("compiling %s", "x.proto")
	logger.Success("done")
	logger.Warning("careful")
	logger.Error("broken: %d", 2)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[INFO] compiling x.proto\n")
	assert.Contains(t, out, "[SUCCESS] done\n")
	assert.Contains(t, out, "[WARNING] careful\n")
	assert.Contains(t, out, "[ERROR] broken: 2\n")
	assert.NotContains(t, out, "hidden")

	logger.SetVerbose(true)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown\n")
}

func TestFileRepositoryListFiles(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"a/x.proto", "a/notes.txt", "b/c/y.proto", "z.proto", "b/upper.PROTO"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	repo := NewFileRepository(quietLogger())
	files, err := repo.ListFiles(root, ".proto")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Equal(t, filepath.Dir(f.Path), f.Dir)
	}
	assert.Equal(t, []string{"x.proto", "y.proto", "z.proto"}, names)
}

func TestFileRepositoryMissingRoot(t *testing.T) {
	repo := NewFileRepository(quietLogger())

	files, err := repo.ListFiles(filepath.Join(t.TempDir(), "missing"), ".proto")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileRepositoryCreateDir(t *testing.T) {
	repo := NewFileRepository(quietLogger())
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, repo.CreateDir(dir))
	require.NoError(t, repo.CreateDir(dir))
	require.NoError(t, repo.CreateDir(""))
	assert.True(t, repo.FileExists(dir))
	assert.False(t, repo.FileExists(filepath.Join(dir, "nope")))
}

func TestCommandRunner(t *testing.T) {
	runner := NewCommandRunner(quietLogger())

	t.Run("captures both streams", func(t *testing.T) {
		script := writeScript(t, `echo "out $1"; echo "err $2" >&2; exit 0`)

		output, err := runner.Run(context.Background(), script, []string{"a b", "c"})
		require.NoError(t, err)
		assert.Equal(t, "out a b\n", output.Stdout)
		assert.Equal(t, "err c\n", output.Stderr)
		assert.Equal(t, 0, output.ExitCode)
	})

	t.Run("exposes exit code", func(t *testing.T) {
		script := writeScript(t, `echo "bad" >&2; exit 3`)

		output, err := runner.Run(context.Background(), script, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, output.ExitCode)
		assert.Equal(t, "bad\n", output.Stderr)
	})

	t.Run("large stderr does not block", func(t *testing.T) {
		script := writeScript(t, `i=0; while [ $i -lt 20000 ]; do echo "warning line $i" >&2; i=$((i+1)); done; echo done`)

		output, err := runner.Run(context.Background(), script, nil)
		require.NoError(t, err)
		assert.Equal(t, "done\n", output.Stdout)
		assert.Greater(t, len(output.Stderr), 65536)
	})

	t.Run("launch failure", func(t *testing.T) {
		_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "no-such-compiler"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCompilerLaunch)
	})

	t.Run("cancelled", func(t *testing.T) {
		script := writeScript(t, `exec sleep 10`)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := runner.Run(ctx, script, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCompilerLocator(t *testing.T) {
	runner := NewCommandRunner(quietLogger())
	locator := NewCompilerLocator(quietLogger(), runner)

	t.Run("version", func(t *testing.T) {
		script := writeScript(t, `[ "$1" = "--version" ] && echo "libprotoc 25.1"`)

		resolved, err := locator.Resolve(script)
		require.NoError(t, err)
		assert.Equal(t, script, resolved)

		version, err := locator.Version(context.Background(), script)
		require.NoError(t, err)
		assert.Equal(t, "libprotoc 25.1", version)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := locator.Resolve(filepath.Join(t.TempDir(), "protoc"))
		assert.ErrorIs(t, err, domain.ErrCompilerNotFound)

		_, err = locator.Resolve("")
		assert.ErrorIs(t, err, domain.ErrCompilerNotFound)
	})

	t.Run("failing version", func(t *testing.T) {
		script := writeScript(t, `echo "unknown flag" >&2; exit 1`)

		_, err := locator.Version(context.Background(), script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown flag")
	})
}

func TestConfigRepositoryLoad(t *testing.T) {
	logger := quietLogger()
	repo := NewConfigRepository(logger, NewFileRepository(logger))
	base := domain.DefaultCompilerConfig()

	t.Run("missing file keeps base", func(t *testing.T) {
		config, err := repo.Load(filepath.Join(t.TempDir(), ".proto-watch.yaml"), base)
		require.NoError(t, err)
		assert.Equal(t, base, config)
	})

	t.Run("overlays keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".proto-watch.yaml")
		data := `enabled: false
compiler_path: /opt/protoc/bin/protoc
language: go
log_standard: true
jobs: 4
compile_timeout: 30s
reserved_dirs:
  - third_party
refresh_command: ["make", "generated"]
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		config, err := repo.Load(path, base)
		require.NoError(t, err)
		assert.False(t, config.Enabled)
		assert.Equal(t, "/opt/protoc/bin/protoc", config.CompilerPath)
		assert.Equal(t, "go", config.Language)
		assert.True(t, config.LogStandard)
		assert.Equal(t, 4, config.Jobs)
		assert.Equal(t, 30*time.Second, config.CompileTimeout)
		assert.Equal(t, []string{"third_party"}, config.ReservedDirs)
		assert.Equal(t, []string{"make", "generated"}, config.RefreshCommand)

		assert.Equal(t, base.SourceDir, config.SourceDir)
		assert.Equal(t, base.LogErrors, config.LogErrors)
	})

	t.Run("project_dir is relative to the file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".proto-watch.yaml")

		tests := []struct {
			value string
			want  string
		}{
			{value: ".", want: dir},
			{value: "./", want: dir},
			{value: "unity", want: filepath.Join(dir, "unity")},
			{value: "/srv/game", want: "/srv/game"},
		}
		for _, tt := range tests {
			require.NoError(t, os.WriteFile(path, []byte("project_dir: \""+tt.value+"\"\n"), 0o644))

			config, err := repo.Load(path, base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, config.ProjectDir, "project_dir %q", tt.value)
		}
	})

	t.Run("absent project_dir keeps base", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".proto-watch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("jobs: 2\n"), 0o644))

		config, err := repo.Load(path, base)
		require.NoError(t, err)
		assert.Equal(t, base.ProjectDir, config.ProjectDir)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".proto-watch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("jobs: [unclosed"), 0o644))

		_, err := repo.Load(path, base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})
}

func TestRefresher(t *testing.T) {
	runner := NewCommandRunner(quietLogger())

	t.Run("log only", func(t *testing.T) {
		var buf bytes.Buffer
		refresher := NewRefresher(NewColorLoggerWithWriter(&buf, false), runner)
		config := domain.DefaultCompilerConfig()
		config.ProjectDir = t.TempDir()

		require.NoError(t, refresher.Refresh(context.Background(), &config))
		assert.Contains(t, buf.String(), "Generated code refreshed under "+config.OutputRoot())
	})

	t.Run("command", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "refreshed")
		script := writeScript(t, `touch "$1"`)
		refresher := NewRefresher(quietLogger(), runner)
		config := domain.DefaultCompilerConfig()
		config.RefreshCommand = []string{script, marker}

		require.NoError(t, refresher.Refresh(context.Background(), &config))
		assert.FileExists(t, marker)
	})

	t.Run("failing command", func(t *testing.T) {
		script := writeScript(t, `exit 2`)
		refresher := NewRefresher(quietLogger(), runner)
		config := domain.DefaultCompilerConfig()
		config.RefreshCommand = []string{script}

		err := refresher.Refresh(context.Background(), &config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 2")
	})
}
