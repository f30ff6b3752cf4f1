package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCategoryAddAndList(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	dsn := filepath.Join(dir, "data", "cli.db") + "?_foreign_keys=on"
	if err := os.WriteFile(envFile, []byte("DATABASE_URL="+dsn+"\nLOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"DATABASE_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if _, err := runCLI(t, "--env-file", envFile, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := runCLI(t, "--env-file", envFile, "category", "add", "Полезные", "ссылки")
	if err != nil {
		t.Fatalf("category add: %v", err)
	}
	if !strings.Contains(out, "Полезные ссылки") {
		t.Errorf("add output = %q", out)
	}

	out, err = runCLI(t, "--env-file", envFile, "category", "list")
	if err != nil {
		t.Fatalf("category list: %v", err)
	}
	if !strings.Contains(out, "1\tПолезные ссылки") {
		t.Errorf("list output = %q", out)
	}

	if _, err := runCLI(t, "--env-file", envFile, "category", "add", "   "); err == nil {
		t.Error("blank category name should fail")
	}
}

func TestDigestRequiresToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", filepath.Join(dir, "cli.db"))
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := runCLI(t, "--env-file", filepath.Join(dir, "missing.env"), "digest")
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_TOKEN") {
		t.Errorf("digest without token: %v", err)
	}
}
