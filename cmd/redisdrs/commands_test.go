package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--config", t.TempDir(), "--log-level", "error"))
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestDumpAndRestoreCommands(t *testing.T) {
	src := miniredis.RunT(t)
	require.NoError(t, src.Set("greeting", "hello"))
	_, err := src.Push("queue", "a", "b")
	require.NoError(t, err)
	require.NoError(t, src.Set("other", "x"))

	file := filepath.Join(t.TempDir(), "backup.dump")

	out := execute(t, "dump", "-u", "redis://"+src.Addr(), "-f", file, "-p", "[gq]*", "-b", "2")
	assert.Contains(t, out, "[DUMP] finished: 2 transferred, 0 failed")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"greeting"`)
	assert.NotContains(t, string(data), `"key":"other"`)

	dst := miniredis.RunT(t)
	out = execute(t, "restore", "-u", "redis://"+dst.Addr(), "-f", file)
	assert.Contains(t, out, "[RESTORE] finished: 2 transferred, 0 failed")

	v, err := dst.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	list, err := dst.List("queue")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "redisdrs v"+Version+"\n", out.String())
}
