package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func lockedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "services_dir: services.d\n"+rootService)
	writeFile(t, filepath.Join(dir, "services.d", "random.yaml"), `
name: Random
kind: random
enabled: true
owned_paths:
  /random:
    allowed_methods: [GET]
`)

	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles() failed: %v", err)
	}
	report, err := GenerateChecksumsWithReport(dir, files, false)
	if err != nil {
		t.Fatalf("GenerateChecksumsWithReport() failed: %v", err)
	}
	if !report.Written {
		t.Fatal("report.Written = false, want true")
	}
	return dir
}

func TestGenerateChecksumsWithReportDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, path, rootService)

	report, err := GenerateChecksumsWithReport(tmpDir, []string{path}, true)
	if err != nil {
		t.Fatalf("GenerateChecksumsWithReport() failed: %v", err)
	}

	if report.Written {
		t.Fatal("report.Written = true, want false in dry-run")
	}
	if len(report.Files) != 1 || report.Files[0].Key != "config.yaml" || report.Files[0].Hash == "" {
		t.Fatalf("unexpected report files %+v", report.Files)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ChecksumFile)); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestChecksumsRoundTripKeys(t *testing.T) {
	dir := lockedDir(t)

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if len(manifest.Hashes) != 2 {
		t.Fatalf("len(manifest.Hashes) = %d, want 2", len(manifest.Hashes))
	}
	for _, key := range []string{"config.yaml", "services.d/random.yaml"} {
		if manifest.Hashes[key] == "" {
			t.Errorf("missing hash for %s", key)
		}
	}

	if _, err := Load(dir); err != nil {
		t.Fatalf("Load() of a locked, unchanged config failed: %v", err)
	}
}

func TestLoadDetectsTampering(t *testing.T) {
	dir := lockedDir(t)
	writeFile(t, filepath.Join(dir, "services.d", "random.yaml"), `
name: Random
kind: random
enabled: false
owned_paths:
  /random:
    allowed_methods: [GET]
`)

	_, err := Load(dir)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Load() error = %v, want ErrIntegrity", err)
	}
}

func TestLoadRejectsUnhashedServiceFile(t *testing.T) {
	dir := lockedDir(t)
	writeFile(t, filepath.Join(dir, "services.d", "zz-extra.yaml"), `
name: Extra
enabled: true
owned_paths:
  /extra:
    allowed_methods: [GET]
`)

	_, err := Load(dir)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Load() error = %v, want ErrIntegrity", err)
	}
}

func TestLoadChecksumsMissing(t *testing.T) {
	_, err := LoadChecksums(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadChecksums() error = %v, want os.ErrNotExist", err)
	}
}

func TestVerifyFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.yaml")
	writeFile(t, path, "a: 1\n")

	hash, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hash))
	}
	if err := VerifyFileHash(path, hash); err != nil {
		t.Fatalf("VerifyFileHash() failed: %v", err)
	}
	if err := VerifyFileHash(path, "00"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("VerifyFileHash() error = %v, want ErrIntegrity", err)
	}
}
