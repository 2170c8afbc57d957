package db

import (
	"strings"
	"testing"
)

func TestConfigDSNAndMigrateURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss word"

	dsn := cfg.DSN()
	if !strings.Contains(dsn, "dbname=rowql") || !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	u := cfg.MigrateURL()
	if !strings.HasPrefix(u, "pgx5://postgres:") {
		t.Fatalf("expected pgx5 scheme, got %q", u)
	}
	if strings.Contains(u, "p@ss word") {
		t.Fatalf("password must be escaped in %q", u)
	}
	if !strings.HasSuffix(u, "/rowql?sslmode=disable") {
		t.Fatalf("unexpected migrate url %q", u)
	}
}
