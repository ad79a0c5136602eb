package database

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"laurels/pkg/logger"
)

const backupPrefix = "laurels_"

// BackupConfig holds backup configuration
type BackupConfig struct {
	BackupDir          string
	MaxBackups         int
	CompressionEnabled bool
	VerifyAfterBackup  bool
}

// BackupInfo represents information about a backup
type BackupInfo struct {
	Filename    string    `json:"filename"`
	FullPath    string    `json:"full_path"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Compressed  bool      `json:"compressed"`
	Verified    bool      `json:"verified"`
	BackupType  string    `json:"backup_type,omitempty"`
	Description string    `json:"description,omitempty"`
}

// DefaultBackupConfig keeps backups next to the database file
func DefaultBackupConfig(dbPath string) *BackupConfig {
	return &BackupConfig{
		BackupDir:          filepath.Join(filepath.Dir(dbPath), "backups"),
		MaxBackups:         20,
		CompressionEnabled: true,
		VerifyAfterBackup:  true,
	}
}

// BackupManager snapshots the database with VACUUM INTO
type BackupManager struct {
	db     *DB
	config *BackupConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewBackupManager creates a new backup manager
func NewBackupManager(db *DB, config *BackupConfig, log *logger.Logger) (*BackupManager, error) {
	if err := ensureDir(config.BackupDir); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &BackupManager{
		db:     db,
		config: config,
		logger: logger.OrDefault(log, "BACKUP"),
		now:    time.Now,
	}, nil
}

// CreateBackup writes a new backup and prunes old ones beyond MaxBackups
func (bm *BackupManager) CreateBackup(ctx context.Context, description, backupType string) (*BackupInfo, error) {
	start := bm.now()
	filename := fmt.Sprintf("%s%s.db", backupPrefix, start.UTC().Format("20060102_150405.000"))
	if bm.config.CompressionEnabled {
		filename += ".gz"
	}
	backupPath := filepath.Join(bm.config.BackupDir, filename)
	bm.logger.Info("Creating backup: %s", filename)

	var (
		size int64
		err  error
	)
	if bm.config.CompressionEnabled {
		size, err = bm.createCompressedBackup(ctx, backupPath)
	} else {
		size, err = bm.createRegularBackup(ctx, backupPath)
	}
	if err != nil {
		return nil, fmt.Errorf("backup creation failed: %w", err)
	}

	info := &BackupInfo{
		Filename:    filename,
		FullPath:    backupPath,
		Size:        size,
		CreatedAt:   start,
		Compressed:  bm.config.CompressionEnabled,
		BackupType:  backupType,
		Description: description,
	}
	if bm.config.VerifyAfterBackup {
		if err := bm.verifyBackup(ctx, info); err != nil {
			bm.logger.Error("Backup verification failed: %v", err)
		} else {
			info.Verified = true
		}
	}
	bm.logger.Info("Backup completed: %s (%d bytes, %v)", filename, size, time.Since(start))

	if err := bm.cleanupOldBackups(); err != nil {
		bm.logger.Warn("Failed to cleanup old backups: %v", err)
	}
	return info, nil
}

// ListBackups returns available backups, newest first
func (bm *BackupManager) ListBackups() ([]*BackupInfo, error) {
	files, err := os.ReadDir(bm.config.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []*BackupInfo
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, backupPrefix) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		fi, err := file.Info()
		if err != nil {
			continue
		}
		backups = append(backups, &BackupInfo{
			Filename:   name,
			FullPath:   filepath.Join(bm.config.BackupDir, name),
			Size:       fi.Size(),
			CreatedAt:  fi.ModTime(),
			Compressed: strings.HasSuffix(name, ".gz"),
		})
	}

	// names embed the timestamp, so they sort chronologically
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// DeleteBackup deletes a specific backup
func (bm *BackupManager) DeleteBackup(filename string) error {
	if filename != filepath.Base(filename) || !strings.HasPrefix(filename, backupPrefix) {
		return fmt.Errorf("invalid backup name: %s", filename)
	}
	if err := os.Remove(filepath.Join(bm.config.BackupDir, filename)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup not found: %s", filename)
		}
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	bm.logger.Info("Deleted backup: %s", filename)
	return nil
}

func (bm *BackupManager) createRegularBackup(ctx context.Context, backupPath string) (int64, error) {
	if _, err := bm.db.ExecContext(ctx, "VACUUM INTO ?", backupPath); err != nil {
		return 0, fmt.Errorf("VACUUM INTO failed: %w", err)
	}
	fi, err := os.Stat(backupPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get backup file info: %w", err)
	}
	return fi.Size(), nil
}

func (bm *BackupManager) createCompressedBackup(ctx context.Context, backupPath string) (int64, error) {
	tempPath := strings.TrimSuffix(backupPath, ".gz") + ".tmp"
	defer os.Remove(tempPath)

	if _, err := bm.createRegularBackup(ctx, tempPath); err != nil {
		return 0, err
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open temp backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create compressed backup: %w", err)
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return 0, fmt.Errorf("failed to compress backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return 0, fmt.Errorf("failed to compress backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("failed to write compressed backup: %w", err)
	}

	fi, err := os.Stat(backupPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get backup file info: %w", err)
	}
	return fi.Size(), nil
}

// verifyBackup runs an integrity check against the backup. Compressed
// backups are checked for a readable gzip stream.
func (bm *BackupManager) verifyBackup(ctx context.Context, info *BackupInfo) error {
	if info.Compressed {
		f, err := os.Open(info.FullPath)
		if err != nil {
			return fmt.Errorf("cannot open backup file: %w", err)
		}
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("backup is not a gzip stream: %w", err)
		}
		defer zr.Close()
		if _, err := io.Copy(io.Discard, zr); err != nil {
			return fmt.Errorf("backup stream is corrupt: %w", err)
		}
		return nil
	}

	testDB, err := sql.Open("sqlite3", "file:"+info.FullPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open backup database: %w", err)
	}
	defer testDB.Close()

	var result string
	if err := testDB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}

func (bm *BackupManager) cleanupOldBackups() error {
	if bm.config.MaxBackups <= 0 {
		return nil
	}
	backups, err := bm.ListBackups()
	if err != nil {
		return err
	}
	for i := bm.config.MaxBackups; i < len(backups); i++ {
		if err := bm.DeleteBackup(backups[i].Filename); err != nil {
			bm.logger.Warn("Failed to delete old backup %s: %v", backups[i].Filename, err)
		}
	}
	return nil
}
