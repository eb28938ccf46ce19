package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"xend-auth/backend/internal/db"
)

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"up", "down"} {
		if d, err := ParseDirection(s); err != nil || string(d) != s {
			t.Errorf("ParseDirection(%q) = %q, %v", s, d, err)
		}
	}
	for _, s := range []string{"", "UP", "Up", "sideways"} {
		if _, err := ParseDirection(s); err == nil {
			t.Errorf("ParseDirection(%q) should fail", s)
		}
	}
}

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", Up)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is not set") {
		t.Fatalf("Run with empty DSN err = %v", err)
	}
}

func TestRun_InvalidDirectionCheckedFirst(t *testing.T) {
	err := Run("", Direction("left"))
	if err == nil || !strings.Contains(err.Error(), "direction") {
		t.Fatalf("Run err = %v, want direction error", err)
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	if _, _, err := Version(""); err == nil {
		t.Fatal("Version with empty DSN should return error")
	}
}

func TestMigrationFS_PairsUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
}
