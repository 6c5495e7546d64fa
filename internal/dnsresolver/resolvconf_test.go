package dnsresolver

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTakeoverResolvConf_Symlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real-resolv.conf")
	if err := os.WriteFile(target, []byte("nameserver 8.8.8.8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "resolv.conf")
	if err := os.Symlink(target, path); err != nil {
		t.Fatal(err)
	}
	backup := path + ".ld_back"

	if err := takeoverResolvConfAt(path, backup); err != nil {
		t.Fatalf("takeoverResolvConfAt() error = %v", err)
	}

	info, err := os.Lstat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatal("expected a regular file after takeover, still a symlink")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != resolvConfContent {
		t.Fatalf("content = %q, want %q", data, resolvConfContent)
	}
}

func TestTakeoverResolvConf_RegularFileNoBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	backup := path + ".ld_back"
	original := []byte("nameserver 8.8.8.8\n")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}

	if err := takeoverResolvConfAt(path, backup); err != nil {
		t.Fatalf("takeoverResolvConfAt() error = %v", err)
	}

	backupData, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("expected backup to exist: %v", err)
	}
	if string(backupData) != string(original) {
		t.Fatalf("backup content = %q, want %q", backupData, original)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != resolvConfContent {
		t.Fatalf("content = %q, want %q", data, resolvConfContent)
	}
}

func TestTakeoverResolvConf_RegularFileWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	backup := path + ".ld_back"
	if err := os.WriteFile(path, []byte("nameserver 8.8.8.8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(backup, []byte("nameserver 1.1.1.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := takeoverResolvConfAt(path, backup); err != nil {
		t.Fatalf("takeoverResolvConfAt() error = %v", err)
	}

	backupData, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(backupData) != "nameserver 1.1.1.1\n" {
		t.Fatalf("pre-existing backup should be untouched, got %q", backupData)
	}
}

func TestTakeoverResolvConf_OtherKindIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}

	if err := takeoverResolvConfAt(path, path+".ld_back"); err == nil {
		t.Fatal("expected error for unexpected file kind (directory)")
	}
}
