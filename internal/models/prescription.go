package models

import (
	"time"
)

// Prescription is a one-to-one record attached to an appointment, authored
// by the appointment's doctor and read-only for the patient.
type Prescription struct {
	BaseModel
	AppointmentID string    `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	DoctorID      string    `gorm:"size:36;index" json:"doctorId"`
	PatientID     string    `gorm:"size:36;index" json:"patientId"`
	Medicine      string    `gorm:"size:200;default:'Not specified'" json:"medicine"`
	Dosage        string    `gorm:"size:100" json:"dosage,omitempty"`
	Instructions  string    `gorm:"type:text" json:"instructions"`
	DateIssued    time.Time `gorm:"autoCreateTime" json:"dateIssued"`
	IsActive      bool      `gorm:"default:true" json:"isActive"`

	// Relations
	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
	Doctor      User        `gorm:"foreignKey:DoctorID" json:"-"`
	Patient     User        `gorm:"foreignKey:PatientID" json:"-"`
}
