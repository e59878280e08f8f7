package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// TenantStores manages one logically isolated SQLite database per tenant.
// Handles are cached; the DSN opens transactions in immediate mode with a
// bounded busy wait, so concurrent writers for the same tenant block instead
// of losing updates.
type TenantStores struct {
	mu     sync.Mutex
	open   map[string]*sqlx.DB
	opener func(tenantID string) (*sqlx.DB, error)
}

func NewTenantStores(dataDir string) *TenantStores {
	return &TenantStores{
		open: make(map[string]*sqlx.DB),
		opener: func(tenantID string) (*sqlx.DB, error) {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path := filepath.Join(dataDir, tenantID+".db")
			dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_fk=1", path)
			return sqlx.Connect("sqlite3", dsn)
		},
	}
}

// NewTenantStoresWithOpener lets tests back tenants with in-memory databases.
func NewTenantStoresWithOpener(opener func(tenantID string) (*sqlx.DB, error)) *TenantStores {
	return &TenantStores{open: make(map[string]*sqlx.DB), opener: opener}
}

// Open returns the tenant's store, creating the database and its schema on
// first use.
func (s *TenantStores) Open(tenantID string) (*sqlx.DB, error) {
	if !validTenantID(tenantID) {
		return nil, fmt.Errorf("invalid tenant id %q", tenantID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[tenantID]; ok {
		return db, nil
	}

	db, err := s.opener(tenantID)
	if err != nil {
		return nil, fmt.Errorf("open tenant store %s: %w", tenantID, err)
	}
	if err := EnsureTenantSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tenant store %s: %w", tenantID, err)
	}
	s.open[tenantID] = db
	return db, nil
}

// Each visits every currently open tenant store.
func (s *TenantStores) Each(fn func(tenantID string, db *sqlx.DB)) {
	s.mu.Lock()
	snapshot := make(map[string]*sqlx.DB, len(s.open))
	for id, db := range s.open {
		snapshot[id] = db
	}
	s.mu.Unlock()

	for id, db := range snapshot {
		fn(id, db)
	}
}

func (s *TenantStores) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, db := range s.open {
		db.Close()
		delete(s.open, id)
	}
}

// Tenant ids become file names; restrict them to what the registry generates.
func validTenantID(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		ok := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '-'
		if !ok {
			return false
		}
	}
	return true
}

// EnsureTenantSchema bootstraps the business tables a tenant store holds.
// The hold table is colocated here so every station for the tenant sees every
// other station's outstanding claims.
func EnsureTenantSchema(db *sqlx.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS students (
  id INTEGER PRIMARY KEY,
  serial_number TEXT,
  last_name TEXT,
  first_name TEXT,
  class_name TEXT,
  points INTEGER NOT NULL DEFAULT 0,
  card_number TEXT,
  id_number TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS points_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  student_id INTEGER,
  points INTEGER,
  reason TEXT,
  teacher_name TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS teachers (
  id INTEGER PRIMARY KEY,
  name TEXT,
  card_number TEXT,
  is_admin INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY,
  name TEXT,
  price_points INTEGER NOT NULL DEFAULT 0,
  stock_qty INTEGER,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS product_variants (
  id INTEGER PRIMARY KEY,
  product_id INTEGER NOT NULL,
  name TEXT,
  stock_qty INTEGER,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS scheduled_services (
  id INTEGER PRIMARY KEY,
  name TEXT,
  capacity_per_slot INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS scheduled_service_dates (
  service_id INTEGER NOT NULL,
  service_date TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY (service_id, service_date)
);

CREATE TABLE IF NOT EXISTS scheduled_service_reservations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  service_id INTEGER NOT NULL,
  student_id INTEGER NOT NULL,
  service_date TEXT NOT NULL,
  slot_start_time TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  station_id TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS purchases (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  student_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  variant_id INTEGER,
  qty INTEGER NOT NULL,
  station_id TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS purchase_holds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  station_id TEXT NOT NULL,
  student_id INTEGER NOT NULL,
  hold_type TEXT NOT NULL,
  product_id INTEGER,
  variant_id INTEGER,
  qty INTEGER NOT NULL DEFAULT 1,
  service_id INTEGER,
  service_date TEXT,
  slot_start_time TEXT,
  duration_minutes INTEGER,
  expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_holds_exp ON purchase_holds(expires_at);
CREATE INDEX IF NOT EXISTS idx_holds_prod ON purchase_holds(hold_type, product_id, variant_id, expires_at);
CREATE INDEX IF NOT EXISTS idx_holds_sched ON purchase_holds(hold_type, service_id, service_date, slot_start_time, expires_at);
CREATE INDEX IF NOT EXISTS idx_holds_station ON purchase_holds(station_id, student_id, expires_at);

CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value_json TEXT
);
`
	_, err := db.Exec(schema)
	return err
}
