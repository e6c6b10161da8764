package handlers

import (
	"errors"
	"fmt"
	"time"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// confirmationLayout renders instants in booking confirmation messages.
const confirmationLayout = "January 2, 2006 at 3:04 PM"

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB        *gorm.DB
	Scheduler *scheduling.Service
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, scheduler *scheduling.Service) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Scheduler: scheduler}
}

// respondSchedulingError maps scheduling sentinel errors to HTTP responses.
func respondSchedulingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, scheduling.ErrInvalidDateTime),
		errors.Is(err, scheduling.ErrPastTime):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, scheduling.ErrTimeSlotTaken):
		utils.Conflict(c, err.Error())
	default:
		utils.InternalServerError(c, "Database error: "+err.Error())
	}
}

// BookAppointmentRequest represents the request body for booking an appointment.
type BookAppointmentRequest struct {
	DoctorID string `json:"doctorId" binding:"required,uuid"`
	Date     string `json:"date" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Type     string `json:"type" binding:"omitempty,oneof=consultation follow_up emergency check_up"`
	Symptoms string `json:"symptoms"`
	Phone    string `json:"phone" binding:"omitempty,max=15"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// BookAppointment handles a patient booking a new appointment.
func (h *AppointmentHandler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Patient ID not found in token")
		return
	}

	appointment, err := h.Scheduler.Book(scheduling.BookingRequest{
		PatientID: patientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Type:      models.AppointmentType(req.Type),
		Symptoms:  req.Symptoms,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	msg := fmt.Sprintf("Appointment booked successfully for %s!",
		appointment.AppointmentTime.Format(confirmationLayout))
	utils.Created(c, msg, appointment)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in
// user. Patients see their own, doctors see their schedule, admins see all.
// An optional ?status= query narrows the list.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Preload("Patient").Preload("Doctor").Order("appointment_time desc")

	switch userRole {
	case models.RolePatient:
		query = query.Where("patient_id = ?", userID)
	case models.RoleDoctor:
		query = query.Where("doctor_id = ?", userID)
	case models.RoleAdmin:
		// Admins see everything.
	default:
		utils.Forbidden(c, "User role not permitted to view appointments.")
		return
	}

	if status := c.Query("status"); status != "" {
		switch models.AppointmentStatus(status) {
		case models.StatusPending, models.StatusCompleted, models.StatusCancelled:
			query = query.Where("status = ?", status)
		default:
			utils.BadRequest(c, "Unknown status filter: "+status)
			return
		}
	}

	var appointments []models.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by the involved patient, the involved doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	var appointment models.Appointment
	err := h.DB.Preload("Patient").Preload("Doctor").
		First(&appointment, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)
	if userRole != models.RoleAdmin && userID != appointment.PatientID && userID != appointment.DoctorID {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// RescheduleAppointmentRequest represents the reschedule form.
type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

// RescheduleAppointment moves a patient's own pending appointment to a new
// instant.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Scheduler.Reschedule(c.Param("id"), patientID, req.Date, req.Time)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	msg := fmt.Sprintf("Appointment rescheduled to %s!",
		appointment.AppointmentTime.Format(confirmationLayout))
	utils.Success(c, msg, appointment)
}

// CancelAppointmentRequest carries the explicit confirmation flag. A cancel
// request without it is rejected rather than silently ignored.
type CancelAppointmentRequest struct {
	Confirm bool `json:"confirm"`
}

// CancelAppointment cancels a patient's own pending appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	var req CancelAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if !req.Confirm {
		utils.BadRequest(c, "Cancellation must be explicitly confirmed.")
		return
	}

	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Scheduler.Cancel(c.Param("id"), patientID)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	msg := fmt.Sprintf("Appointment on %s has been cancelled successfully!",
		appointment.AppointmentTime.Format(confirmationLayout))
	utils.Success(c, msg, appointment)
}

// CompleteAppointmentRequest carries the doctor's consultation notes.
type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

// CompleteAppointment marks a doctor's own pending appointment as completed.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	var req CompleteAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Scheduler.Complete(c.Param("id"), doctorID, req.Notes)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}
	utils.Success(c, "Appointment marked as completed.", appointment)
}

// AddNotesRequest carries notes to attach without a status change.
type AddNotesRequest struct {
	Notes string `json:"notes"`
}

// AddAppointmentNotes attaches or updates notes on any of the doctor's own
// appointments, regardless of status.
func (h *AppointmentHandler) AddAppointmentNotes(c *gin.Context) {
	var req AddNotesRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Scheduler.AddNotes(c.Param("id"), doctorID, req.Notes)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}
	utils.Success(c, "Notes updated successfully.", appointment)
}

// GetDoctorAvailability returns the free half-hour boundaries for a doctor
// on a given date (?date=YYYY-MM-DD, defaulting to today).
func (h *AppointmentHandler) GetDoctorAvailability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.Scheduler.Now().Format(scheduling.DateLayout)
	}

	slots, err := h.Scheduler.AvailableSlots(c.Param("id"), date)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Available slots fetched successfully", gin.H{
		"doctorId": c.Param("id"),
		"date":     date,
		"slots":    slots,
	})
}

// UpcomingAppointments lists the patient's pending future appointments in
// ascending order.
func (h *AppointmentHandler) UpcomingAppointments(c *gin.Context) {
	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var appointments []models.Appointment
	err := h.DB.Preload("Doctor").
		Where("patient_id = ? AND status = ? AND appointment_time >= ?",
			patientID, models.StatusPending, time.Now()).
		Order("appointment_time asc").
		Find(&appointments).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Upcoming appointments fetched successfully", appointments)
}

// AppointmentHistory lists the patient's completed and cancelled
// appointments, newest first.
func (h *AppointmentHandler) AppointmentHistory(c *gin.Context) {
	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var appointments []models.Appointment
	err := h.DB.Preload("Doctor").
		Where("patient_id = ? AND status IN ?",
			patientID, []models.AppointmentStatus{models.StatusCompleted, models.StatusCancelled}).
		Order("appointment_time desc").
		Find(&appointments).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointment history fetched successfully", appointments)
}
