package handlers

import (
	"errors"
	"time"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SlotHandler manages doctor-declared availability windows. These windows
// are the doctor's published schedule; the booking flow computes free times
// from the clinic-hours grid instead.
type SlotHandler struct {
	DB *gorm.DB
}

// NewSlotHandler creates a new SlotHandler.
func NewSlotHandler(db *gorm.DB) *SlotHandler {
	return &SlotHandler{DB: db}
}

// CreateSlotRequest represents the request body for declaring a slot.
type CreateSlotRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	Type      string    `json:"type" binding:"omitempty,oneof=regular emergency blocked"`
}

// CreateSlot declares a new availability window for the logged-in doctor.
func (h *SlotHandler) CreateSlot(c *gin.Context) {
	var req CreateSlotRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	slotType := models.SlotType(req.Type)
	if slotType == "" {
		slotType = models.SlotRegular
	}

	slot := models.Slot{
		DoctorID:    doctorID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsAvailable: true,
		Type:        slotType,
	}
	if err := h.DB.Create(&slot).Error; err != nil {
		switch {
		case errors.Is(err, models.ErrSlotTimesInverted), errors.Is(err, models.ErrSlotInPast):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, gorm.ErrDuplicatedKey):
			utils.Conflict(c, "A slot already starts at this time.")
		default:
			utils.InternalServerError(c, "Failed to create slot: "+err.Error())
		}
		return
	}

	utils.Created(c, "Slot created successfully", slot)
}

// GetMySlots lists the logged-in doctor's declared slots in start order.
func (h *SlotHandler) GetMySlots(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var slots []models.Slot
	err := h.DB.Where("doctor_id = ?", doctorID).
		Order("start_time asc").
		Find(&slots).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch slots: "+err.Error())
		return
	}
	utils.Success(c, "Slots fetched successfully", slots)
}

// UpdateSlotRequest represents the mutable slot fields.
type UpdateSlotRequest struct {
	IsAvailable *bool  `json:"isAvailable"`
	Type        string `json:"type" binding:"omitempty,oneof=regular emergency blocked"`
}

// UpdateSlot toggles availability or retypes one of the doctor's own slots.
func (h *SlotHandler) UpdateSlot(c *gin.Context) {
	var req UpdateSlotRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var slot models.Slot
	err := h.DB.Where("id = ? AND doctor_id = ?", c.Param("id"), doctorID).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Slot not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if req.IsAvailable != nil {
		slot.IsAvailable = *req.IsAvailable
	}
	if req.Type != "" {
		slot.Type = models.SlotType(req.Type)
	}
	if err := h.DB.Save(&slot).Error; err != nil {
		utils.InternalServerError(c, "Failed to update slot: "+err.Error())
		return
	}
	utils.Success(c, "Slot updated successfully", slot)
}

// DeleteSlot removes one of the doctor's own slots.
func (h *SlotHandler) DeleteSlot(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	result := h.DB.Where("id = ? AND doctor_id = ?", c.Param("id"), doctorID).
		Delete(&models.Slot{})
	if result.Error != nil {
		utils.InternalServerError(c, "Failed to delete slot: "+result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		utils.NotFound(c, "Slot not found")
		return
	}
	utils.Success(c, "Slot deleted successfully", nil)
}
