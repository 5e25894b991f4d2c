package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is the manifest name inside the config directory.
const ChecksumFile = ".checksums"

// ErrIntegrity is wrapped by every checksum verification failure.
var ErrIntegrity = errors.New("config integrity check failed")

// HashUpdateFileResult captures checksum generation outcome for one file.
type HashUpdateFileResult struct {
	Key  string
	Path string
	Hash string
}

// HashUpdateReport captures checksum generation details for a config directory.
type HashUpdateReport struct {
	ConfigDir    string
	ChecksumPath string
	Written      bool
	Files        []HashUpdateFileResult
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("%w: hash mismatch for %s: expected %s, got %s",
			ErrIntegrity, filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// manifestKey names a file in the manifest: relative to configDir when it
// lives below it, absolute otherwise.
func manifestKey(configDir, path string) string {
	rel, err := filepath.Rel(configDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

// GenerateChecksumsWithReport hashes files and optionally writes .checksums
// into configDir. When dryRun is true nothing is written.
func GenerateChecksumsWithReport(configDir string, files []string, dryRun bool) (*HashUpdateReport, error) {
	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string),
	}

	report := &HashUpdateReport{
		ConfigDir:    configDir,
		ChecksumPath: filepath.Join(configDir, ChecksumFile),
		Files:        make([]HashUpdateFileResult, 0, len(files)),
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, path := range sorted {
		hash, err := ComputeBlake3Hash(path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", path, err)
		}
		key := manifestKey(configDir, path)
		manifest.Hashes[key] = hash
		report.Files = append(report.Files, HashUpdateFileResult{Key: key, Path: path, Hash: hash})
	}

	if dryRun {
		return report, nil
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checksums: %w", err)
	}

	// Write with restrictive permissions (contains expected hashes)
	if err := os.WriteFile(report.ChecksumPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write checksums: %w", err)
	}
	report.Written = true

	return report, nil
}

// LoadChecksums reads the .checksums file from a config directory. A missing
// manifest is reported with an error wrapping os.ErrNotExist.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	checksumPath := filepath.Join(configDir, ChecksumFile)

	data, err := os.ReadFile(checksumPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checksums file not found (run 'svcengine config lock'): %w", os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}

	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}

	return &manifest, nil
}

// VerifyFiles checks every file against the manifest. Files with no entry
// fail, so a new services_dir file cannot slip in unhashed.
func VerifyFiles(configDir string, manifest *ChecksumManifest, files []string) error {
	for _, path := range files {
		key := manifestKey(configDir, path)
		expectedHash, ok := manifest.Hashes[key]
		if !ok {
			return fmt.Errorf("%w: %s has no hash in %s\nRun: svcengine config lock",
				ErrIntegrity, key, ChecksumFile)
		}
		if err := VerifyFileHash(path, expectedHash); err != nil {
			return fmt.Errorf("config verification failed for %s: %w\n"+
				"If you edited this file intentionally, run: svcengine config lock", key, err)
		}
	}
	return nil
}
