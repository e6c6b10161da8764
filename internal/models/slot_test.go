package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupModelDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func createDoctor(t *testing.T, db *gorm.DB) *User {
	t.Helper()
	doctor := &User{
		Email: fmt.Sprintf("doctor-%s@example.com", uuid.New().String()[:8]),
		Role:  RoleDoctor,
	}
	require.NoError(t, doctor.SetPassword("test-password-123"))
	require.NoError(t, db.Create(doctor).Error)
	return doctor
}

func TestSlotValidate(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.Local)

	t.Run("valid window", func(t *testing.T) {
		slot := Slot{
			StartTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		}
		assert.NoError(t, slot.Validate(now))
	})

	t.Run("start must be before end", func(t *testing.T) {
		slot := Slot{
			StartTime: now.Add(2 * time.Hour),
			EndTime:   now.Add(time.Hour),
		}
		assert.ErrorIs(t, slot.Validate(now), ErrSlotTimesInverted)

		// A zero-length window is inverted too.
		slot.EndTime = slot.StartTime
		assert.ErrorIs(t, slot.Validate(now), ErrSlotTimesInverted)
	})

	t.Run("no past starts", func(t *testing.T) {
		slot := Slot{
			StartTime: now.Add(-time.Hour),
			EndTime:   now.Add(time.Hour),
		}
		assert.ErrorIs(t, slot.Validate(now), ErrSlotInPast)
	})
}

func TestSlotCreateRunsValidation(t *testing.T) {
	db := setupModelDB(t)
	doctor := createDoctor(t, db)
	future := time.Now().Add(24 * time.Hour)

	err := db.Create(&Slot{
		DoctorID:  doctor.ID,
		StartTime: future.Add(time.Hour),
		EndTime:   future,
	}).Error
	assert.ErrorIs(t, err, ErrSlotTimesInverted)

	err = db.Create(&Slot{
		DoctorID:  doctor.ID,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   future,
	}).Error
	assert.ErrorIs(t, err, ErrSlotInPast)
}

func TestSlotUniquePerDoctorAndStart(t *testing.T) {
	db := setupModelDB(t)
	doctor := createDoctor(t, db)
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	require.NoError(t, db.Create(&Slot{
		DoctorID:  doctor.ID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}).Error)

	err := db.Create(&Slot{
		DoctorID:  doctor.ID,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Another doctor may start a slot at the same instant.
	other := createDoctor(t, db)
	assert.NoError(t, db.Create(&Slot{
		DoctorID:  other.ID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}).Error)
}
