package scheduling

import (
	"fmt"
	"testing"
	"time"

	"clinic-app-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixedNow is the test clock: Friday 2025-01-10 12:00 local time.
var fixedNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.Local)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewServiceWithClock(db, func() time.Time { return fixedNow }), db
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Email:     fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8]),
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	}
	require.NoError(t, user.SetPassword("test-password-123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func bookingReq(patient, doctor *models.User, date, timeOfDay string) BookingRequest {
	return BookingRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      date,
		Time:      timeOfDay,
		Type:      models.TypeConsultation,
		Symptoms:  "headache",
	}
}

func TestBookSuccess(t *testing.T) {
	svc, _ := setupService(t)
	patient := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(patient, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, appt.Status)
	assert.False(t, appt.IsRescheduled)
	assert.Equal(t, patient.ID, appt.PatientID)
	assert.Equal(t, doctor.ID, appt.DoctorID)
	require.NotNil(t, appt.BookingKey)
	assert.Equal(t, models.MakeBookingKey(doctor.ID, appt.AppointmentTime), *appt.BookingKey)

	expected := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)
	assert.True(t, appt.AppointmentTime.Equal(expected))
}

func TestBookValidationFailures(t *testing.T) {
	svc, _ := setupService(t)
	patient := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	t.Run("unknown doctor", func(t *testing.T) {
		req := bookingReq(patient, doctor, "2025-01-15", "10:00")
		req.DoctorID = uuid.New().String()
		_, err := svc.Book(req)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("patient id is not a doctor", func(t *testing.T) {
		req := bookingReq(patient, doctor, "2025-01-15", "10:00")
		req.DoctorID = patient.ID
		_, err := svc.Book(req)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("bad date format", func(t *testing.T) {
		_, err := svc.Book(bookingReq(patient, doctor, "15-01-2025", "10:00"))
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})

	t.Run("bad time format", func(t *testing.T) {
		_, err := svc.Book(bookingReq(patient, doctor, "2025-01-15", "10am"))
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})

	t.Run("past timestamp", func(t *testing.T) {
		_, err := svc.Book(bookingReq(patient, doctor, "2025-01-05", "10:00"))
		assert.ErrorIs(t, err, ErrPastTime)
	})

	t.Run("exact now is rejected", func(t *testing.T) {
		_, err := svc.Book(bookingReq(patient, doctor, "2025-01-10", "12:00"))
		assert.ErrorIs(t, err, ErrPastTime)
	})
}

func TestBookDoubleBookingRejected(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	bob := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	_, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	_, err = svc.Book(bookingReq(bob, doctor, "2025-01-15", "10:00"))
	assert.ErrorIs(t, err, ErrTimeSlotTaken)

	// Same instant with a different doctor is fine.
	otherDoctor := createUser(t, svc.db, models.RoleDoctor)
	_, err = svc.Book(bookingReq(bob, otherDoctor, "2025-01-15", "10:00"))
	assert.NoError(t, err)
}

func TestBookDuplicateBookingKeyRejected(t *testing.T) {
	svc, db := setupService(t)
	alice := createUser(t, db, models.RolePatient)
	bob := createUser(t, db, models.RolePatient)
	doctor := createUser(t, db, models.RoleDoctor)

	// A row holding the booking key that the status filter skips: the
	// conflict query ignores cancelled rows, so only the unique index can
	// reject the insert. This is the state a racing writer leaves behind
	// between the check and the create.
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)
	key := models.MakeBookingKey(doctor.ID, at)
	require.NoError(t, db.Create(&models.Appointment{
		PatientID:       alice.ID,
		DoctorID:        doctor.ID,
		AppointmentTime: at,
		Status:          models.StatusCancelled,
		BookingKey:      &key,
	}).Error)

	_, err := svc.Book(bookingReq(bob, doctor, "2025-01-15", "10:00"))
	assert.ErrorIs(t, err, ErrTimeSlotTaken)
}

func TestCancelFreesTheSlot(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	bob := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(appt.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.BookingKey)

	// Cancellation frees the instant for other bookings.
	_, err = svc.Book(bookingReq(bob, doctor, "2025-01-15", "10:00"))
	assert.NoError(t, err)

	// Cancelling again targets a non-pending row and reports not-found.
	_, err = svc.Cancel(appt.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelOwnershipAndStatusFilter(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	mallory := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	_, err = svc.Cancel(appt.ID, mallory.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = svc.Cancel(uuid.New().String(), alice.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestReschedule(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	bob := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)
	_, err = svc.Book(bookingReq(bob, doctor, "2025-01-15", "11:00"))
	require.NoError(t, err)

	t.Run("target held by another booking", func(t *testing.T) {
		_, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-15", "11:00")
		assert.ErrorIs(t, err, ErrTimeSlotTaken)
	})

	t.Run("own instant never blocks", func(t *testing.T) {
		moved, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-15", "10:00")
		require.NoError(t, err)
		assert.True(t, moved.IsRescheduled)
	})

	t.Run("moves and frees the old instant", func(t *testing.T) {
		moved, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-16", "09:30")
		require.NoError(t, err)
		assert.True(t, moved.IsRescheduled)
		expected := time.Date(2025, 1, 16, 9, 30, 0, 0, time.Local)
		assert.True(t, moved.AppointmentTime.Equal(expected))

		// The vacated 10:00 instant is bookable again.
		_, err = svc.Book(bookingReq(bob, doctor, "2025-01-15", "10:00"))
		assert.NoError(t, err)
	})

	t.Run("flag stays set on later reschedules", func(t *testing.T) {
		moved, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-17", "14:00")
		require.NoError(t, err)
		assert.True(t, moved.IsRescheduled)
	})

	t.Run("past target rejected", func(t *testing.T) {
		_, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-01", "10:00")
		assert.ErrorIs(t, err, ErrPastTime)
	})

	t.Run("bad format rejected", func(t *testing.T) {
		_, err := svc.Reschedule(appt.ID, alice.ID, "2025-01-17", "2pm")
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})
}

func TestRescheduleOnlyPendingOwnedRows(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	mallory := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	_, err = svc.Reschedule(appt.ID, mallory.ID, "2025-01-16", "10:00")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = svc.Complete(appt.ID, doctor.ID, "seen")
	require.NoError(t, err)

	// Completed rows are filtered out of the reschedule query, so the
	// failure is reported as not-found rather than a status error.
	_, err = svc.Reschedule(appt.ID, alice.ID, "2025-01-16", "10:00")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestComplete(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)
	otherDoctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	_, err = svc.Complete(appt.ID, otherDoctor.ID, "not mine")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	done, err := svc.Complete(appt.ID, doctor.ID, "patient stable")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, "patient stable", done.Notes)

	// Terminal: completing again reports not-found.
	_, err = svc.Complete(appt.ID, doctor.ID, "again")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// A completed appointment still blocks its instant.
	bob := createUser(t, svc.db, models.RolePatient)
	_, err = svc.Book(bookingReq(bob, doctor, "2025-01-15", "10:00"))
	assert.ErrorIs(t, err, ErrTimeSlotTaken)
}

func TestAddNotes(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)
	otherDoctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)

	_, err = svc.AddNotes(appt.ID, otherDoctor.ID, "intruding")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	updated, err := svc.AddNotes(appt.ID, doctor.ID, "first impression")
	require.NoError(t, err)
	assert.Equal(t, "first impression", updated.Notes)
	assert.Equal(t, models.StatusPending, updated.Status)

	// Notes stay writable after completion, without a status change.
	_, err = svc.Complete(appt.ID, doctor.ID, "done")
	require.NoError(t, err)
	updated, err = svc.AddNotes(appt.ID, doctor.ID, "follow up in two weeks")
	require.NoError(t, err)
	assert.Equal(t, "follow up in two weeks", updated.Notes)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestAvailableSlots(t *testing.T) {
	svc, _ := setupService(t)
	alice := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	t.Run("full grid on a free future day", func(t *testing.T) {
		slots, err := svc.AvailableSlots(doctor.ID, "2025-01-15")
		require.NoError(t, err)
		assert.Len(t, slots, 16) // 09:00 .. 16:30 in 30-minute steps
		assert.Equal(t, "09:00", slots[0])
		assert.Equal(t, "16:30", slots[len(slots)-1])
	})

	t.Run("booked boundaries are excluded", func(t *testing.T) {
		appt, err := svc.Book(bookingReq(alice, doctor, "2025-01-15", "10:00"))
		require.NoError(t, err)

		slots, err := svc.AvailableSlots(doctor.ID, "2025-01-15")
		require.NoError(t, err)
		assert.Len(t, slots, 15)
		assert.NotContains(t, slots, "10:00")

		// Cancelled bookings no longer occupy their boundary.
		_, err = svc.Cancel(appt.ID, alice.ID)
		require.NoError(t, err)
		slots, err = svc.AvailableSlots(doctor.ID, "2025-01-15")
		require.NoError(t, err)
		assert.Contains(t, slots, "10:00")
	})

	t.Run("today hides boundaries not strictly in the future", func(t *testing.T) {
		slots, err := svc.AvailableSlots(doctor.ID, "2025-01-10")
		require.NoError(t, err)
		// Clock is 12:00, so 12:30 through 16:30 remain.
		assert.Equal(t, []string{"12:30", "13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30"}, slots)
	})

	t.Run("past dates are empty", func(t *testing.T) {
		slots, err := svc.AvailableSlots(doctor.ID, "2025-01-09")
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		_, err := svc.AvailableSlots(uuid.New().String(), "2025-01-15")
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := svc.AvailableSlots(doctor.ID, "Jan 15")
		assert.ErrorIs(t, err, ErrInvalidDateTime)
	})
}

// TestBookingLifecycleScenario walks the end-to-end flow: book, conflict,
// reschedule, complete, then a late cancel attempt.
func TestBookingLifecycleScenario(t *testing.T) {
	svc, _ := setupService(t)
	patient := createUser(t, svc.db, models.RolePatient)
	rival := createUser(t, svc.db, models.RolePatient)
	doctor := createUser(t, svc.db, models.RoleDoctor)

	appt, err := svc.Book(bookingReq(patient, doctor, "2025-01-15", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)

	_, err = svc.Book(bookingReq(rival, doctor, "2025-01-15", "10:00"))
	assert.ErrorIs(t, err, ErrTimeSlotTaken)

	moved, err := svc.Reschedule(appt.ID, patient.ID, "2025-01-15", "11:00")
	require.NoError(t, err)
	assert.True(t, moved.IsRescheduled)

	// The vacated 10:00 slot is free again.
	_, err = svc.Book(bookingReq(rival, doctor, "2025-01-15", "10:00"))
	assert.NoError(t, err)

	done, err := svc.Complete(appt.ID, doctor.ID, "stable")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, "stable", done.Notes)

	_, err = svc.Cancel(appt.ID, patient.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
