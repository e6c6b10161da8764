package jobs

import (
	"log"
	"time"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Runner owns the background cron schedule.
type Runner struct {
	cron *cron.Cron
	db   *gorm.DB
	cfg  *config.Config
}

// NewRunner creates a Runner with the application's scheduled jobs
// registered but not yet started.
func NewRunner(db *gorm.DB, cfg *config.Config) (*Runner, error) {
	r := &Runner{
		cron: cron.New(),
		db:   db,
		cfg:  cfg,
	}

	if _, err := r.cron.AddFunc(cfg.ReminderCronSpec, r.SendAppointmentReminders); err != nil {
		return nil, err
	}
	// Sunday 03:00, prune refresh tokens that can never be used again.
	if _, err := r.cron.AddFunc("0 3 * * 0", r.CleanupExpiredTokens); err != nil {
		return nil, err
	}

	return r, nil
}

// Start launches the cron scheduler in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	log.Printf("Background jobs started (reminders: %q)", r.cfg.ReminderCronSpec)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// SendAppointmentReminders logs a reminder for every pending appointment
// in the next 24 hours. No mail transport is configured, so the reminder
// is written to the application log for the operator.
func (r *Runner) SendAppointmentReminders() {
	now := time.Now()

	var appointments []models.Appointment
	err := r.db.Preload("Patient").Preload("Doctor").
		Where("status = ? AND appointment_time >= ? AND appointment_time <= ?",
			models.StatusPending, now, now.Add(24*time.Hour)).
		Order("appointment_time asc").
		Find(&appointments).Error
	if err != nil {
		log.Printf("Reminder scan failed: %v", err)
		return
	}

	for _, appt := range appointments {
		log.Printf("Reminder: %s has an appointment with Dr. %s at %s",
			appt.Patient.Email, appt.Doctor.FullName(),
			appt.AppointmentTime.Format("2006-01-02 15:04"))
	}
	log.Printf("Reminder scan complete: %d appointment(s) in the next 24 hours", len(appointments))
}

// CleanupExpiredTokens deletes refresh tokens that are expired or revoked.
func (r *Runner) CleanupExpiredTokens() {
	result := r.db.Where("expires_at < ? OR is_revoked = ?", time.Now(), true).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		log.Printf("Token cleanup failed: %v", result.Error)
		return
	}
	log.Printf("Token cleanup removed %d refresh token(s)", result.RowsAffected)
}
