package repository

import (
	"context"
	"testing"
	"time"

	"fundi/internal/database/dbtest"
	"fundi/internal/domain"
	"fundi/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRecordRequest(t *testing.T) {
	db := dbtest.New(t)
	f := dbtest.SeedBooking(t, db, 500, domain.BookingStatusPending)
	repo := NewMpesaRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M1", "ws_CO_1", "254712345678", 500))

	got, err := repo.FindUnprocessedByMerchantID(ctx, "M1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.Booking.ID, got.BookingID)
	assert.Equal(t, "ws_CO_1", got.CheckoutRequestID)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, 500.0, got.Amount)
	assert.False(t, got.Processed)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecordRequestUnknownBooking(t *testing.T) {
	db := dbtest.New(t)
	repo := NewMpesaRequestRepository(db)

	err := repo.RecordRequest(context.Background(), 9999, "M1", "ws_CO_1", "254712345678", 500)
	assert.ErrorIs(t, err, ErrPersistence)

	var n int64
	db.Model(&models.MpesaRequest{}).Count(&n)
	assert.Zero(t, n)
}

func TestRecordRequestDuplicateMerchantID(t *testing.T) {
	db := dbtest.New(t)
	f := dbtest.SeedBooking(t, db, 500, domain.BookingStatusPending)
	repo := NewMpesaRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M1", "ws_CO_1", "254712345678", 500))
	err := repo.RecordRequest(ctx, f.Booking.ID, "M1", "ws_CO_2", "254712345678", 500)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestFindUnprocessedMissing(t *testing.T) {
	db := dbtest.New(t)
	got, err := NewMpesaRequestRepository(db).FindUnprocessedByMerchantID(context.Background(), "M-unknown")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	f := dbtest.SeedBooking(t, db, 300, domain.BookingStatusPending)
	repo := NewMpesaRequestRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M2", "ws_CO_2", "254712345678", 300))
	row, err := repo.FindUnprocessedByMerchantID(ctx, "M2")
	require.NoError(t, err)
	require.NotNil(t, row)

	n, err := repo.MarkProcessed(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.MarkProcessed(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := repo.FindUnprocessedByMerchantID(ctx, "M2")
	require.NoError(t, err)
	assert.Nil(t, got)

	var stored models.MpesaRequest
	require.NoError(t, db.First(&stored, row.ID).Error)
	assert.True(t, stored.Processed)
}

func TestListStaleUnprocessed(t *testing.T) {
	db := dbtest.New(t)
	f := dbtest.SeedBooking(t, db, 100, domain.BookingStatusPending)
	repo := NewMpesaRequestRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M-old", "ws_CO_old", "254712345678", 100))
	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M-done", "ws_CO_done", "254712345678", 100))
	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M-new", "ws_CO_new", "254712345678", 100))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.MpesaRequest{}).Where("merchant_request_id IN ?", []string{"M-old", "M-done"}).Update("created_at", old).Error)
	require.NoError(t, db.Model(&models.MpesaRequest{}).Where("merchant_request_id = ?", "M-done").Update("processed", true).Error)

	list, err := repo.ListStaleUnprocessed(ctx, time.Now().Add(-10*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "M-old", list[0].MerchantRequestID)
}

func TestGetByCheckoutRequestID(t *testing.T) {
	db := dbtest.New(t)
	f := dbtest.SeedBooking(t, db, 100, domain.BookingStatusPending)
	repo := NewMpesaRequestRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.RecordRequest(ctx, f.Booking.ID, "M1", "ws_CO_1", "254712345678", 100))

	got, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, "M1", got.MerchantRequestID)
	assert.Equal(t, f.Client.ID, got.Booking.ClientID)

	_, err = repo.GetByCheckoutRequestID(ctx, "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// On MySQL the ledger lookup must take a row lock.
func TestFindUnprocessedLocksRowOnMySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `mpesa_requests` WHERE .*merchant_request_id = \\?.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "merchant_request_id", "processed"}))
	mock.ExpectCommit()

	repo := NewMpesaRequestRepository(gdb)
	err = gdb.Transaction(func(tx *gorm.DB) error {
		row, err := repo.WithTx(tx).FindUnprocessedByMerchantID(context.Background(), "M1")
		assert.Nil(t, row)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
