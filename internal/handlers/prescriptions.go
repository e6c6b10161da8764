package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const prescriptionsPerPage = 20

// PrescriptionHandler handles prescription related requests.
type PrescriptionHandler struct {
	DB *gorm.DB
}

// NewPrescriptionHandler creates a new PrescriptionHandler.
func NewPrescriptionHandler(db *gorm.DB) *PrescriptionHandler {
	return &PrescriptionHandler{DB: db}
}

// CreatePrescriptionRequest represents the request body for issuing a prescription.
type CreatePrescriptionRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required,uuid"`
	Medicine      string `json:"medicine" binding:"required,max=200"`
	Dosage        string `json:"dosage" binding:"omitempty,max=100"`
	Instructions  string `json:"instructions" binding:"required"`
}

// CreatePrescription issues a prescription for an appointment. Only the
// appointment's doctor may issue one, the appointment must not be
// cancelled, and each appointment carries at most one prescription.
func (h *PrescriptionHandler) CreatePrescription(c *gin.Context) {
	var req CreatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var appointment models.Appointment
	err := h.DB.Where("id = ? AND doctor_id = ?", req.AppointmentID, doctorID).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	if appointment.Status == models.StatusCancelled {
		utils.BadRequest(c, "Cannot issue a prescription for a cancelled appointment.")
		return
	}

	prescription := models.Prescription{
		AppointmentID: appointment.ID,
		DoctorID:      doctorID,
		PatientID:     appointment.PatientID,
		Medicine:      req.Medicine,
		Dosage:        req.Dosage,
		Instructions:  req.Instructions,
		IsActive:      true,
	}
	if err := h.DB.Create(&prescription).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Conflict(c, "This appointment already has a prescription.")
			return
		}
		utils.InternalServerError(c, "Failed to create prescription: "+err.Error())
		return
	}

	utils.Created(c, "Prescription issued successfully", prescription)
}

// UpdatePrescriptionRequest represents the editable prescription fields.
type UpdatePrescriptionRequest struct {
	Medicine     string `json:"medicine" binding:"omitempty,max=200"`
	Dosage       string `json:"dosage" binding:"omitempty,max=100"`
	Instructions string `json:"instructions"`
	IsActive     *bool  `json:"isActive"`
}

// UpdatePrescription edits a prescription. Only the prescribing doctor may
// edit it.
func (h *PrescriptionHandler) UpdatePrescription(c *gin.Context) {
	var req UpdatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var prescription models.Prescription
	err := h.DB.First(&prescription, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Prescription not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	if prescription.DoctorID != doctorID {
		utils.Forbidden(c, "Only the prescribing doctor can edit this prescription.")
		return
	}

	if req.Medicine != "" {
		prescription.Medicine = req.Medicine
	}
	if req.Dosage != "" {
		prescription.Dosage = req.Dosage
	}
	if req.Instructions != "" {
		prescription.Instructions = req.Instructions
	}
	if req.IsActive != nil {
		prescription.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&prescription).Error; err != nil {
		utils.InternalServerError(c, "Failed to update prescription: "+err.Error())
		return
	}
	utils.Success(c, "Prescription updated successfully", prescription)
}

// GetMyPrescriptions lists the logged-in doctor's prescriptions, newest
// first, with optional search (?q=) on patient name or medicine, an
// optional ?status=active|expired filter, and ?page= pagination.
func (h *PrescriptionHandler) GetMyPrescriptions(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	query := h.DB.Model(&models.Prescription{}).
		Preload("Patient").Preload("Appointment").
		Where("prescriptions.doctor_id = ?", doctorID)

	if q := c.Query("q"); q != "" {
		pattern := "%" + q + "%"
		query = query.
			Joins("JOIN users ON users.id = prescriptions.patient_id").
			Where("users.first_name LIKE ? OR users.last_name LIKE ? OR users.email LIKE ? OR prescriptions.medicine LIKE ?",
				pattern, pattern, pattern, pattern)
	}

	switch c.Query("status") {
	case "active":
		query = query.Where("prescriptions.is_active = ?", true)
	case "expired":
		query = query.Where("prescriptions.is_active = ?", false)
	case "":
	default:
		utils.BadRequest(c, "Unknown status filter: "+c.Query("status"))
		return
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to count prescriptions: "+err.Error())
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	var prescriptions []models.Prescription
	err = query.Order("date_issued desc").
		Limit(prescriptionsPerPage).
		Offset((page - 1) * prescriptionsPerPage).
		Find(&prescriptions).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch prescriptions: "+err.Error())
		return
	}

	utils.Success(c, "Prescriptions fetched successfully", gin.H{
		"prescriptions": prescriptions,
		"total":         total,
		"page":          page,
		"perPage":       prescriptionsPerPage,
	})
}

// GetPatientPrescriptions lists the logged-in patient's own prescriptions,
// newest first. Patients have read-only access.
func (h *PrescriptionHandler) GetPatientPrescriptions(c *gin.Context) {
	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var prescriptions []models.Prescription
	err := h.DB.Preload("Doctor").Preload("Appointment").
		Where("patient_id = ?", patientID).
		Order("date_issued desc").
		Find(&prescriptions).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch prescriptions: "+err.Error())
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", prescriptions)
}

// DownloadPrescription returns a single prescription as a JSON attachment.
// Only the prescribing doctor or the patient it belongs to may download it.
func (h *PrescriptionHandler) DownloadPrescription(c *gin.Context) {
	var prescription models.Prescription
	err := h.DB.Preload("Doctor").Preload("Patient").Preload("Appointment").
		First(&prescription, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Prescription not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if userID != prescription.DoctorID && userID != prescription.PatientID {
		utils.Forbidden(c, "You are not authorized to download this prescription.")
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"prescription_%s.json\"", prescription.ID))
	c.JSON(200, gin.H{
		"id":           prescription.ID,
		"doctor":       prescription.Doctor.FullName(),
		"patient":      prescription.Patient.FullName(),
		"medicine":     prescription.Medicine,
		"dosage":       prescription.Dosage,
		"instructions": prescription.Instructions,
		"dateIssued":   prescription.DateIssued,
		"isActive":     prescription.IsActive,
	})
}
