package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func migrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir())
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestDownMigrationsDropEveryCreatedTable(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir())
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	createPattern := regexp.MustCompile(`(?i)CREATE TABLE IF NOT EXISTS (\w+)`)
	dropPattern := regexp.MustCompile(`(?i)DROP TABLE IF EXISTS (\w+)`)
	created := map[string]bool{}
	dropped := map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir(), entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			for _, match := range createPattern.FindAllStringSubmatch(string(contents), -1) {
				created[strings.ToLower(match[1])] = true
			}
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			for _, match := range dropPattern.FindAllStringSubmatch(string(contents), -1) {
				dropped[strings.ToLower(match[1])] = true
			}
		}
	}

	for table := range created {
		if !dropped[table] {
			t.Errorf("table %s is created but never dropped", table)
		}
	}
}
