package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// SlotType classifies a doctor-declared availability window
type SlotType string

const (
	SlotRegular   SlotType = "regular"
	SlotEmergency SlotType = "emergency"
	SlotBlocked   SlotType = "blocked" // doctor's personal time
)

// Slot is a doctor-declared availability window. Booking availability is
// computed from the fixed clinic-hours grid, not from these rows; they only
// describe the doctor's published schedule.
type Slot struct {
	BaseModel
	DoctorID    string    `gorm:"size:36;uniqueIndex:idx_doctor_start" json:"doctorId"`
	StartTime   time.Time `gorm:"uniqueIndex:idx_doctor_start" json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAvailable bool      `gorm:"default:true" json:"isAvailable"`
	Type        SlotType  `gorm:"size:20;default:'regular'" json:"type"`

	Doctor User `gorm:"foreignKey:DoctorID" json:"-"`
}

var (
	ErrSlotTimesInverted = errors.New("slot start time must be before end time")
	ErrSlotInPast        = errors.New("cannot create slots in the past")
)

// Validate enforces the slot window invariants.
func (s *Slot) Validate(now time.Time) error {
	if !s.StartTime.Before(s.EndTime) {
		return ErrSlotTimesInverted
	}
	if s.StartTime.Before(now) {
		return ErrSlotInPast
	}
	return nil
}

// BeforeCreate runs slot validation before the row is written.
func (s *Slot) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate(time.Now())
}

// Duration returns the slot length in minutes.
func (s *Slot) Duration() int {
	return int(s.EndTime.Sub(s.StartTime).Minutes())
}
