package catalog

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// BackupManager snapshots the catalog's SQLite file into timestamped zip
// archives.
type BackupManager struct {
	dbPath    string
	backupDir string
}

// NewBackupManager returns a manager that backs up the catalog file at
// dbPath into zip archives under backupDir.
func NewBackupManager(dbPath, backupDir string) *BackupManager {
	return &BackupManager{dbPath: dbPath, backupDir: backupDir}
}

// CreateBackup writes a timestamped zip of the catalog file and returns its
// path. nowCompact is a clock.CompactLayout timestamp from the caller's
// clock, used only in the archive's filename.
func (bm *BackupManager) CreateBackup(nowCompact string) (string, error) {
	if err := os.MkdirAll(bm.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("catalog: create backup dir: %w", err)
	}

	backupPath := filepath.Join(bm.backupDir, fmt.Sprintf("sr-backup-%s.zip", nowCompact))
	zipFile, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("catalog: create backup file: %w", err)
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)
	defer zw.Close()

	if err := addFileToZip(zw, bm.dbPath, "sr.db"); err != nil {
		return "", fmt.Errorf("catalog: add db to backup: %w", err)
	}
	return backupPath, nil
}

// CleanupOldBackups deletes all but the retentionCount most recently
// modified backups.
func (bm *BackupManager) CleanupOldBackups(retentionCount int) error {
	files, err := filepath.Glob(filepath.Join(bm.backupDir, "sr-backup-*.zip"))
	if err != nil {
		return fmt.Errorf("catalog: list backups: %w", err)
	}
	if len(files) <= retentionCount {
		return nil
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	infos := make([]fileInfo, 0, len(files))
	for _, path := range files {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: path, modTime: st.ModTime().Unix()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime < infos[j].modTime })

	deleteCount := len(infos) - retentionCount
	for i := 0; i < deleteCount; i++ {
		os.Remove(infos[i].path)
	}
	return nil
}

func addFileToZip(zw *zip.Writer, filePath, nameInZip string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(nameInZip)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
