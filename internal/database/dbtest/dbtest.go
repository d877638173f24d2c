// Package dbtest opens throwaway SQLite databases with the production schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"fundi/internal/database"
	"fundi/internal/domain"
	"fundi/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated database that is removed when t finishes. A single
// connection is used and transactions start IMMEDIATE, so concurrent
// transactions serialize the way row locks serialize them on MySQL.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "fundi.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a client, a provider and a pending booking between them.
type Fixture struct {
	Client       models.User
	ProviderUser models.User
	Provider     models.Provider
	Booking      models.Booking
}

// SeedBooking inserts a fresh Fixture with a booking of the given status.
func SeedBooking(t testing.TB, db *gorm.DB, amount float64, status string) *Fixture {
	t.Helper()
	suffix := uuid.NewString()[:8]
	f := &Fixture{
		Client:       models.User{Name: "Client " + suffix, Email: "client-" + suffix + "@example.com", Phone: "254712345678", Role: domain.RoleClient},
		ProviderUser: models.User{Name: "Provider " + suffix, Email: "provider-" + suffix + "@example.com", Role: domain.RoleProvider},
	}
	must(t, db.Create(&f.Client).Error)
	must(t, db.Create(&f.ProviderUser).Error)
	f.Provider = models.Provider{UserID: f.ProviderUser.ID, BusinessName: "Fix-It " + suffix, Category: "plumbing"}
	must(t, db.Create(&f.Provider).Error)
	f.Booking = models.Booking{
		ClientID:    f.Client.ID,
		ProviderID:  f.Provider.ID,
		ServiceName: "Leaking tap repair",
		TotalAmount: amount,
		Status:      status,
	}
	must(t, db.Create(&f.Booking).Error)
	return f
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
