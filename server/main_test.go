package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRunAndVerify(t *testing.T) {
	dir := t.TempDir()
	numbers := filepath.Join(dir, "numbers")
	require.NoError(t, os.WriteFile(numbers, []byte("0011\n0001\n"), 0o644))
	report := filepath.Join(dir, "report.yaml")

	out := execute(t, "run", "--size", "7", "--algorithm", "adder", "--input", numbers, "--report", report)
	assert.Equal(t, "3:0\n4:1\n5:0\n6:0\n", out)

	out = execute(t, "verify", report, "--line", "1")
	assert.Contains(t, out, "line 1: < 0011")
	assert.Contains(t, out, "ok ")
}

func TestRunSortDecimal(t *testing.T) {
	values := filepath.Join(t.TempDir(), "values")
	require.NoError(t, os.WriteFile(values, []byte("3 1 4 1 5\n"), 0o644))

	db := filepath.Join(t.TempDir(), "runs.db")

	out := execute(t, "run", "--size", "9", "--algorithm", "sort", "--values", "decimal", "--input", values,
		"--report", "", "--history", db)
	assert.Equal(t, "3 1 4 1 5\n1\n1\n3\n4\n5\n", out)

	out = execute(t, "history", db, "--summary")
	assert.Contains(t, out, "sort   size=9")
	assert.Contains(t, out, "runs=1")
}

func TestLoadConfigRejectsEvenSize(t *testing.T) {
	rootCmd.SetArgs([]string{"run", "--size", "4"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	assert.Error(t, rootCmd.Execute())
}
