package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T, dbPath string) {
	t.Helper()
	t.Setenv("DATABASE_URL", "sqlite:"+dbPath)
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("TOKEN_HASH_PEPPER", "pepper-pepper-pepper")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "migrate", "sweep", "loadgen"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v %v", name, cmd, err)
		}
	}
}

func TestMigrateThenSweep(t *testing.T) {
	dir := t.TempDir()
	setRequiredEnv(t, filepath.Join(dir, "app.db"))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--env-file", filepath.Join(dir, "missing.env")})
	if err := root.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "schema up to date") {
		t.Fatalf("unexpected migrate output %q", out.String())
	}

	root = newRootCommand()
	root.SetArgs([]string{"sweep", "--env-file", filepath.Join(dir, "missing.env")})
	if err := root.Execute(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestEnvFileIsLoadedBeforeConfig(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	contents := "DATABASE_URL=sqlite:" + filepath.Join(dir, "from-env-file.db") + "\n" +
		"JWT_ACCESS_SECRET=abcdefghijklmnopqrstuvwxyz123456\n" +
		"TOKEN_HASH_PEPPER=pepper-pepper-pepper\n"
	if err := os.WriteFile(envPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	for _, key := range []string{"DATABASE_URL", "JWT_ACCESS_SECRET", "TOKEN_HASH_PEPPER"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "--env-file", envPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("migrate with env file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "from-env-file.db")); err != nil {
		t.Fatalf("expected database created from env file settings: %v", err)
	}
}

func TestMigrateFailsWithoutSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "short")
	t.Setenv("TOKEN_HASH_PEPPER", "pepper-pepper-pepper")
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	if err := root.Execute(); err == nil {
		t.Fatal("expected config validation error")
	}
}
