package ban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"exchange/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists the ban map {ip: expiryMillis}. Implementations must
// tolerate concurrent callers.
type Store interface {
	Get(ctx context.Context, ip string) (expiresAtMillis int64, found bool, err error)
	Put(ctx context.Context, ip string, expiresAtMillis int64, reason string) error
	Delete(ctx context.Context, ip string) (bool, error)
	List(ctx context.Context) (map[string]int64, error)
}

// FileStore keeps the ban map as a single JSON object. Every write replaces
// the file through a temp file and rename, so readers never see a partial map.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("ban file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ban dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get(_ context.Context, ip string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bans, err := s.load()
	if err != nil {
		return 0, false, err
	}
	expiry, ok := bans[ip]
	return expiry, ok, nil
}

func (s *FileStore) Put(_ context.Context, ip string, expiresAtMillis int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bans, err := s.load()
	if err != nil {
		return err
	}
	bans[ip] = expiresAtMillis
	return s.save(bans)
}

func (s *FileStore) Delete(_ context.Context, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bans, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := bans[ip]; !ok {
		return false, nil
	}
	delete(bans, ip)
	return true, s.save(bans)
}

func (s *FileStore) List(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load treats a missing or empty file as an empty map.
func (s *FileStore) load() (map[string]int64, error) {
	bans := make(map[string]int64)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return bans, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ban file: %w", err)
	}
	if err := json.Unmarshal(data, &bans); err != nil {
		return nil, fmt.Errorf("decode ban file: %w", err)
	}
	return bans, nil
}

func (s *FileStore) save(bans map[string]int64) error {
	data, err := json.MarshalIndent(bans, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ban file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".banned-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ban file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ban file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ban file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ban file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ban file: %w", err)
	}
	return nil
}

// DBStore keeps bans in the banned_ips table so several instances share them.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Get(ctx context.Context, ip string) (int64, bool, error) {
	var row models.BannedIP
	err := s.db.WithContext(ctx).Where("ip_address = ?", ip).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get ban: %w", err)
	}
	return row.ExpiresAtMillis, true, nil
}

func (s *DBStore) Put(ctx context.Context, ip string, expiresAtMillis int64, reason string) error {
	row := models.BannedIP{IPAddress: ip, ExpiresAtMillis: expiresAtMillis, Reason: reason}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at_millis", "reason", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("put ban: %w", err)
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, ip string) (bool, error) {
	result := s.db.WithContext(ctx).Where("ip_address = ?", ip).Delete(&models.BannedIP{})
	if result.Error != nil {
		return false, fmt.Errorf("delete ban: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *DBStore) List(ctx context.Context) (map[string]int64, error) {
	var rows []models.BannedIP
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	bans := make(map[string]int64, len(rows))
	for _, row := range rows {
		bans[row.IPAddress] = row.ExpiresAtMillis
	}
	return bans, nil
}
