package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// upMigrationNames lists the embedded up-migration filenames in lexical
// order. Down migrations are excluded; they never contribute to the target
// version or the checksum.
func upMigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, errors.New("no embedded migrations found")
	}
	sort.Strings(names)
	return names, nil
}

// LatestMigrationVersion returns the schema version the embedded set
// migrates to.
func LatestMigrationVersion() (uint, error) {
	names, err := upMigrationNames()
	if err != nil {
		return 0, err
	}

	// Filenames sort by their zero-padded version prefix, so the last
	// entry carries the target version.
	last := names[len(names)-1]
	prefix, _, found := strings.Cut(last, "_")
	if !found {
		return 0, fmt.Errorf("invalid migration filename: %s", last)
	}
	version, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid migration filename: %s", last)
	}
	return uint(version), nil
}

// MigrationsChecksum hashes the embedded up migrations, names and contents,
// so a deploy can be compared against what was applied.
func MigrationsChecksum() (string, error) {
	names, err := upMigrationNames()
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	for _, name := range names {
		content, err := embeddedMigrations.ReadFile(migrationsDir + "/" + name)
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", name, err)
		}
		fmt.Fprintf(hasher, "%s\x00%s\x00", name, content)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
