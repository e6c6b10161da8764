package scheduling

import (
	"errors"
	"time"

	"clinic-app-server/internal/models"

	"gorm.io/gorm"
)

// Clinic hours used to build the availability grid. Availability is computed
// against booked appointments on this fixed grid; Slot rows do not feed it.
const (
	OpeningHour  = 9
	ClosingHour  = 17
	SlotInterval = 30 * time.Minute
)

// Form layouts accepted from the booking and reschedule forms.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Service implements the appointment lifecycle: booking with conflict
// checks, reschedule, cancel, completion and the availability grid.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a scheduling service using the wall clock.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// NewServiceWithClock creates a scheduling service with an injected clock.
func NewServiceWithClock(db *gorm.DB, now func() time.Time) *Service {
	return &Service{db: db, now: now}
}

// Now reports the service clock's current time. Callers deriving defaults
// from "today" read it here so they agree with the validation logic.
func (s *Service) Now() time.Time {
	return s.now()
}

// BookingRequest carries the patient-submitted booking form.
type BookingRequest struct {
	PatientID string
	DoctorID  string
	Date      string
	Time      string
	Type      models.AppointmentType
	Symptoms  string
	Phone     string
	Email     string
}

// Book validates and persists a new pending appointment. Failure modes, in
// validation order: ErrDoctorNotFound, ErrInvalidDateTime, ErrPastTime,
// ErrTimeSlotTaken.
func (s *Service) Book(req BookingRequest) (*models.Appointment, error) {
	if _, err := s.findDoctor(req.DoctorID); err != nil {
		return nil, err
	}

	at, err := s.parseDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !at.After(s.now()) {
		return nil, ErrPastTime
	}

	apptType := req.Type
	if apptType == "" {
		apptType = models.TypeConsultation
	}

	key := models.MakeBookingKey(req.DoctorID, at)
	appointment := &models.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentTime: at,
		Type:            apptType,
		Symptoms:        req.Symptoms,
		Phone:           req.Phone,
		Email:           req.Email,
		Status:          models.StatusPending,
		BookingKey:      &key,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := s.slotTaken(tx, req.DoctorID, at, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrTimeSlotTaken
		}
		if err := tx.Create(appointment).Error; err != nil {
			// The unique booking key is the backstop for two requests
			// racing past the read above.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTimeSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

// Reschedule moves a pending appointment owned by patientID to a new
// instant and marks it rescheduled. The flag is monotonic: once set it is
// never cleared by later reschedules. A completed or cancelled appointment
// reports ErrAppointmentNotFound, same as a missing or foreign one.
func (s *Service) Reschedule(appointmentID, patientID, date, timeOfDay string) (*models.Appointment, error) {
	appointment, err := s.findPendingForPatient(appointmentID, patientID)
	if err != nil {
		return nil, err
	}

	at, err := s.parseDateTime(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if !at.After(s.now()) {
		return nil, ErrPastTime
	}

	key := models.MakeBookingKey(appointment.DoctorID, at)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// An appointment must not conflict with itself.
		taken, err := s.slotTaken(tx, appointment.DoctorID, at, appointment.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrTimeSlotTaken
		}

		appointment.AppointmentTime = at
		appointment.IsRescheduled = true
		appointment.BookingKey = &key
		if err := tx.Save(appointment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTimeSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appointment, nil
}

// Cancel moves a pending appointment owned by patientID to cancelled.
// Cancelled rows drop their booking key, so the instant is immediately free
// for other bookings.
func (s *Service) Cancel(appointmentID, patientID string) (*models.Appointment, error) {
	appointment, err := s.findPendingForPatient(appointmentID, patientID)
	if err != nil {
		return nil, err
	}

	appointment.Status = models.StatusCancelled
	appointment.BookingKey = nil
	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

// Complete moves a pending appointment owned (as doctor) by doctorID to
// completed and stores the consultation notes. Terminal: no further status
// transition is exposed afterwards.
func (s *Service) Complete(appointmentID, doctorID, notes string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.
		Where("id = ? AND doctor_id = ? AND status = ?", appointmentID, doctorID, models.StatusPending).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	appointment.Status = models.StatusCompleted
	appointment.Notes = notes
	if err := s.db.Save(&appointment).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// AddNotes attaches or updates the doctor's notes on an appointment without
// touching its status, whatever that status is. Only the appointment's
// doctor may write notes.
func (s *Service) AddNotes(appointmentID, doctorID, notes string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.
		Where("id = ? AND doctor_id = ?", appointmentID, doctorID).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	appointment.Notes = notes
	if err := s.db.Save(&appointment).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// AvailableSlots returns the free half-hour boundaries between clinic
// opening and closing for a doctor on the given date, as "HH:MM" strings in
// ascending order. Boundaries holding a pending or completed appointment
// are excluded; for today, boundaries not strictly in the future are
// excluded; dates before today yield an empty slice. The result is
// recomputed on every call.
func (s *Service) AvailableSlots(doctorID, date string) ([]string, error) {
	if _, err := s.findDoctor(doctorID); err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return nil, ErrInvalidDateTime
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if day.Before(today) {
		return []string{}, nil
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	var booked []models.Appointment
	err = s.db.
		Select("appointment_time").
		Where("doctor_id = ? AND appointment_time >= ? AND appointment_time < ? AND status IN ?",
			doctorID, dayStart, dayEnd, []models.AppointmentStatus{models.StatusPending, models.StatusCompleted}).
		Find(&booked).Error
	if err != nil {
		return nil, err
	}

	bookedTimes := make(map[string]bool, len(booked))
	for _, appt := range booked {
		bookedTimes[appt.AppointmentTime.In(time.Local).Format(TimeLayout)] = true
	}

	slots := []string{}
	cursor := time.Date(day.Year(), day.Month(), day.Day(), OpeningHour, 0, 0, 0, time.Local)
	closing := time.Date(day.Year(), day.Month(), day.Day(), ClosingHour, 0, 0, 0, time.Local)
	for cursor.Before(closing) {
		label := cursor.Format(TimeLayout)
		if !bookedTimes[label] {
			if !day.Equal(today) || cursor.After(now) {
				slots = append(slots, label)
			}
		}
		cursor = cursor.Add(SlotInterval)
	}
	return slots, nil
}

// findDoctor verifies the id belongs to an existing user with the doctor role.
func (s *Service) findDoctor(doctorID string) (*models.User, error) {
	var doctor models.User
	err := s.db.Where("id = ? AND role = ?", doctorID, models.RoleDoctor).First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &doctor, nil
}

// findPendingForPatient loads an appointment by id, owner and pending
// status in one query, so wrong id, wrong owner and wrong status all
// surface as ErrAppointmentNotFound.
func (s *Service) findPendingForPatient(appointmentID, patientID string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.db.
		Where("id = ? AND patient_id = ? AND status = ?", appointmentID, patientID, models.StatusPending).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

// slotTaken reports whether the doctor already holds a non-cancelled
// appointment at the exact instant, optionally excluding one appointment id.
func (s *Service) slotTaken(tx *gorm.DB, doctorID string, at time.Time, excludeID string) (bool, error) {
	query := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_time = ? AND status IN ?",
			doctorID, at, []models.AppointmentStatus{models.StatusPending, models.StatusCompleted})
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// parseDateTime combines the submitted date and time-of-day form fields.
func (s *Service) parseDateTime(date, timeOfDay string) (time.Time, error) {
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDateTime
	}
	return at, nil
}
