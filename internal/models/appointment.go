package models

import (
	"fmt"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentType represents the kind of visit being booked
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeEmergency    AppointmentType = "emergency"
	TypeCheckUp      AppointmentType = "check_up"
)

// Appointment represents a scheduled (or historical) encounter between one
// patient and one doctor at a specific instant.
type Appointment struct {
	BaseModel
	PatientID       string            `gorm:"size:36;index:idx_patient_status" json:"patientId"`
	DoctorID        string            `gorm:"size:36;index:idx_doctor_time" json:"doctorId"`
	AppointmentTime time.Time         `gorm:"index:idx_doctor_time;index" json:"appointmentTime"`
	Type            AppointmentType   `gorm:"size:20;default:'consultation'" json:"type"`
	Symptoms        string            `gorm:"type:text" json:"symptoms,omitempty"`
	Notes           string            `gorm:"type:text" json:"notes,omitempty"`
	Phone           string            `gorm:"size:15" json:"phone,omitempty"`
	Email           string            `gorm:"size:255" json:"email,omitempty"`
	Status          AppointmentStatus `gorm:"size:20;default:'pending';index:idx_patient_status" json:"status"`
	IsRescheduled   bool              `gorm:"default:false" json:"isRescheduled"`

	// BookingKey enforces at most one non-cancelled appointment per doctor
	// and instant. Set for pending/completed rows, NULL once cancelled, so
	// the unique index never blocks rebooking a freed time.
	BookingKey *string `gorm:"uniqueIndex;size:80" json:"-"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}

// MakeBookingKey builds the uniqueness key for a doctor/instant pair.
func MakeBookingKey(doctorID string, at time.Time) string {
	return fmt.Sprintf("%s@%d", doctorID, at.UTC().Unix())
}

// IsUpcoming reports whether the appointment is still pending and in the future.
func (a *Appointment) IsUpcoming(now time.Time) bool {
	return a.Status == StatusPending && a.AppointmentTime.After(now)
}
