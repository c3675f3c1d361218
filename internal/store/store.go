// Package store tracks issued certificates in a sqlite database kept
// in the data directory. The store is the source of truth for which
// certificates exist, which provider issued them and when they expire;
// the sync and renewal sweeps are driven off it.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite" // sqlite driver
	"github.com/sirupsen/logrus"

	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/logging"
)

// dbFile is the database file name inside the data directory.
const dbFile = "certs.db"

// Record is one issued certificate tracked by the store.
type Record struct {
	Name       string    `gorm:"primary_key" json:"name"`
	Provider   string    `json:"provider"`
	Domains    string    `json:"-"` // JSON-encoded domain list
	ExpiryDate time.Time `json:"expiry_date"`
	Checksum   string    `json:"checksum"`
}

// TableName keeps the original table name.
func (Record) TableName() string {
	return "certs"
}

// DomainList decodes the stored domain list.
func (r *Record) DomainList() []string {
	var domains []string
	if err := json.Unmarshal([]byte(r.Domains), &domains); err != nil {
		return nil
	}
	return domains
}

// Store persists certificate records in sqlite.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Open opens (creating if needed) the certs database in dataDir.
func Open(dataDir string) (*Store, error) {
	db, err := gorm.Open("sqlite3", filepath.Join(dataDir, dbFile))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to open certs database", err)
	}

	if err := db.AutoMigrate(&Record{}).Error; err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to migrate certs database", err)
	}

	return &Store{
		db:  db,
		log: logging.Component("store"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Checksum returns the hex sha256 over the sorted domain list. It makes
// domain-set comparison independent of config ordering.
func Checksum(domains []string) string {
	sorted := append([]string(nil), domains...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "")))
	return hex.EncodeToString(sum[:])
}

// Replace inserts or fully replaces the record for name.
func (s *Store) Replace(name, provider string, domains []string, expiry time.Time) error {
	encoded, err := json.Marshal(domains)
	if err != nil {
		return errors.WrapName(errors.ErrCodeStore, name, "failed to encode domains", err)
	}

	rec := Record{
		Name:       name,
		Provider:   provider,
		Domains:    string(encoded),
		ExpiryDate: expiry,
		Checksum:   Checksum(domains),
	}

	tx := s.db.Begin()
	if err := tx.Where("name = ?", name).Delete(&Record{}).Error; err != nil {
		tx.Rollback()
		return errors.WrapName(errors.ErrCodeStore, name, "failed to replace record", err)
	}
	if err := tx.Create(&rec).Error; err != nil {
		tx.Rollback()
		return errors.WrapName(errors.ErrCodeStore, name, "failed to replace record", err)
	}
	if err := tx.Commit().Error; err != nil {
		return errors.WrapName(errors.ErrCodeStore, name, "failed to replace record", err)
	}

	s.log.Debugf("Replaced cert record for %q", name)
	return nil
}

// UpdateExpiry sets a new expiry date for name.
func (s *Store) UpdateExpiry(name string, expiry time.Time) error {
	err := s.db.Model(&Record{}).Where("name = ?", name).
		Update("expiry_date", expiry).Error
	if err != nil {
		return errors.WrapName(errors.ErrCodeStore, name, "failed to update expiry date", err)
	}

	s.log.Debugf("Updated expiry date for %q", name)
	return nil
}

// Remove deletes the record for name. Removing an absent record is not
// an error.
func (s *Store) Remove(name string) error {
	if err := s.db.Where("name = ?", name).Delete(&Record{}).Error; err != nil {
		return errors.WrapName(errors.ErrCodeStore, name, "failed to remove record", err)
	}

	s.log.Debugf("Removed cert record for %q", name)
	return nil
}

// Get returns the record for name, or nil when it does not exist.
func (s *Store) Get(name string) (*Record, error) {
	var rec Record
	err := s.db.Where("name = ?", name).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapName(errors.ErrCodeStore, name, "failed to read record", err)
	}
	return &rec, nil
}

// All returns every stored record.
func (s *Store) All() ([]Record, error) {
	var recs []Record
	if err := s.db.Order("name").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to list records", err)
	}
	return recs, nil
}

// Due returns records expiring within the given window.
func (s *Store) Due(window time.Duration) ([]Record, error) {
	var recs []Record
	cutoff := time.Now().Add(window)
	if err := s.db.Where("expiry_date < ?", cutoff).Order("name").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to list due records", err)
	}
	return recs, nil
}

// Check reports whether the stored record for name is up to date with
// the given domain list. An absent record and a domain-set mismatch
// both count as stale.
func (s *Store) Check(name string, domains []string) (bool, error) {
	rec, err := s.Get(name)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return rec.Checksum == Checksum(domains), nil
}
