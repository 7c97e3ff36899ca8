package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// createBackup copies the store's db_root directory to a timestamped
// sibling under backups/ before a migration runs (spec §4.1, §6:
// "<db_root>/../backups/backup_v{N}_{RFC3339-timestamp}_{original-dir-name}/").
// It returns the absolute backup path. The target directory must not
// already exist; a collision is treated as a hard error rather than
// silently overwritten, so a partial backup is never mistaken for a
// complete one (spec §5: "the target directory must not pre-exist").
func (db *DB) createBackup(currentVersion uint32) (string, error) {
	root, err := filepath.Abs(db.root)
	if err != nil {
		return "", fmt.Errorf("store: resolving db root: %w", err)
	}
	backupsDir := filepath.Join(filepath.Dir(root), "backups")
	if err := os.MkdirAll(backupsDir, 0o700); err != nil {
		return "", fmt.Errorf("store: creating backups directory: %w", err)
	}

	name := fmt.Sprintf("backup_v%d_%s_%s", currentVersion, time.Now().UTC().Format(time.RFC3339), filepath.Base(root))
	dest := filepath.Join(backupsDir, name)

	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("store: backup directory %s already exists", dest)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("store: checking backup destination: %w", err)
	}

	if err := copyDirRecursive(root, dest); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("store: copying %s to %s: %w", root, dest, err)
	}
	return dest, nil
}

// copyDirRecursive copies the contents of src into a newly created dest
// directory tree, preserving regular-file contents and directory structure.
func copyDirRecursive(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
