package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DashboardHandler serves the role dashboards, analytics and exports.
type DashboardHandler struct {
	DB *gorm.DB
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

func (h *DashboardHandler) countAppointments(conds ...interface{}) int64 {
	var n int64
	h.DB.Model(&models.Appointment{}).Where(conds[0], conds[1:]...).Count(&n)
	return n
}

// PatientDashboard returns the patient's statistics, recent activity and
// next upcoming appointment.
func (h *DashboardHandler) PatientDashboard(c *gin.Context) {
	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	now := time.Now()

	upcoming := h.countAppointments("patient_id = ? AND status = ? AND appointment_time >= ?",
		patientID, models.StatusPending, now)
	pending := h.countAppointments("patient_id = ? AND status = ?", patientID, models.StatusPending)
	completed := h.countAppointments("patient_id = ? AND status = ?", patientID, models.StatusCompleted)

	var activePrescriptions int64
	h.DB.Model(&models.Prescription{}).
		Where("patient_id = ? AND is_active = ?", patientID, true).
		Count(&activePrescriptions)

	var recentAppointments []models.Appointment
	h.DB.Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("appointment_time desc").Limit(5).
		Find(&recentAppointments)

	var recentPrescriptions []models.Prescription
	h.DB.Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("date_issued desc").Limit(5).
		Find(&recentPrescriptions)

	var nextAppointment *models.Appointment
	var next models.Appointment
	err := h.DB.Preload("Doctor").
		Where("patient_id = ? AND status = ? AND appointment_time >= ?",
			patientID, models.StatusPending, now).
		Order("appointment_time asc").
		First(&next).Error
	if err == nil {
		nextAppointment = &next
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	utils.Success(c, "Patient dashboard fetched successfully", gin.H{
		"upcomingAppointmentsCount": upcoming,
		"pendingAppointmentsCount":  pending,
		"completedAppointments":     completed,
		"totalVisits":               completed,
		"activePrescriptionsCount":  activePrescriptions,
		"recentAppointments":        recentAppointments,
		"recentPrescriptions":       recentPrescriptions,
		"nextAppointment":           nextAppointment,
	})
}

// PatientNotifications returns derived notification counts for the patient:
// pending appointments starting within the next 24 hours, and pending
// appointments whose time has already passed.
func (h *DashboardHandler) PatientNotifications(c *gin.Context) {
	patientID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	now := time.Now()

	upcoming := h.countAppointments(
		"patient_id = ? AND status = ? AND appointment_time >= ? AND appointment_time <= ?",
		patientID, models.StatusPending, now, now.Add(24*time.Hour))
	overdue := h.countAppointments(
		"patient_id = ? AND status = ? AND appointment_time < ?",
		patientID, models.StatusPending, now)

	notifications := []gin.H{}
	if upcoming > 0 {
		notifications = append(notifications, gin.H{
			"type":    "info",
			"message": fmt.Sprintf("You have %d appointment%s in the next 24 hours.", upcoming, plural(upcoming)),
		})
	}
	if overdue > 0 {
		notifications = append(notifications, gin.H{
			"type":    "warning",
			"message": fmt.Sprintf("You have %d overdue appointment%s.", overdue, plural(overdue)),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// DoctorDashboard returns today's schedule, the next week's pending
// appointments and headline statistics for the logged-in doctor.
func (h *DashboardHandler) DoctorDashboard(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var todays []models.Appointment
	h.DB.Preload("Patient").
		Where("doctor_id = ? AND appointment_time >= ? AND appointment_time < ?",
			doctorID, dayStart, dayEnd).
		Order("appointment_time asc").
		Find(&todays)

	var upcoming []models.Appointment
	h.DB.Preload("Patient").
		Where("doctor_id = ? AND status = ? AND appointment_time >= ? AND appointment_time < ?",
			doctorID, models.StatusPending, now, dayStart.AddDate(0, 0, 8)).
		Order("appointment_time asc").
		Find(&upcoming)

	var totalPatients int64
	h.DB.Model(&models.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Distinct("patient_id").
		Count(&totalPatients)

	pending := h.countAppointments("doctor_id = ? AND status = ?", doctorID, models.StatusPending)

	var prescriptionsCount int64
	h.DB.Model(&models.Prescription{}).Where("doctor_id = ?", doctorID).Count(&prescriptionsCount)

	utils.Success(c, "Doctor dashboard fetched successfully", gin.H{
		"todaysAppointments":      todays,
		"todaysAppointmentsCount": len(todays),
		"upcomingAppointments":    upcoming,
		"totalPatients":           totalPatients,
		"pendingAppointments":     pending,
		"prescriptionsCount":      prescriptionsCount,
	})
}

// DoctorSchedule returns the doctor's current week grouped by day.
func (h *DashboardHandler) DoctorSchedule(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Monday-based week.
	offset := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -offset)
	weekEnd := weekStart.AddDate(0, 0, 7)

	var appointments []models.Appointment
	err := h.DB.Preload("Patient").
		Where("doctor_id = ? AND appointment_time >= ? AND appointment_time < ?",
			doctorID, weekStart, weekEnd).
		Order("appointment_time asc").
		Find(&appointments).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch schedule: "+err.Error())
		return
	}

	scheduleByDay := make(map[string][]models.Appointment, 7)
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		scheduleByDay[day.Format("2006-01-02")] = []models.Appointment{}
	}
	for _, appt := range appointments {
		key := appt.AppointmentTime.Format("2006-01-02")
		scheduleByDay[key] = append(scheduleByDay[key], appt)
	}

	utils.Success(c, "Schedule fetched successfully", gin.H{
		"weekStart":     weekStart.Format("2006-01-02"),
		"weekEnd":       weekEnd.AddDate(0, 0, -1).Format("2006-01-02"),
		"scheduleByDay": scheduleByDay,
	})
}

// DoctorAnalytics returns aggregate activity figures for the doctor over
// the last 7 and 30 days.
func (h *DashboardHandler) DoctorAnalytics(c *gin.Context) {
	doctorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	now := time.Now()
	sevenDaysAgo := now.AddDate(0, 0, -7)
	thirtyDaysAgo := now.AddDate(0, 0, -30)

	total := h.countAppointments("doctor_id = ?", doctorID)
	completed := h.countAppointments("doctor_id = ? AND status = ?", doctorID, models.StatusCompleted)
	pending := h.countAppointments("doctor_id = ? AND status = ? AND appointment_time >= ?",
		doctorID, models.StatusPending, now)
	weekly := h.countAppointments("doctor_id = ? AND appointment_time >= ?", doctorID, sevenDaysAgo)
	monthly := h.countAppointments("doctor_id = ? AND appointment_time >= ?", doctorID, thirtyDaysAgo)
	monthlyCompleted := h.countAppointments("doctor_id = ? AND status = ? AND appointment_time >= ?",
		doctorID, models.StatusCompleted, thirtyDaysAgo)

	var totalPatients, activePatients int64
	h.DB.Model(&models.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Distinct("patient_id").Count(&totalPatients)
	h.DB.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_time >= ?", doctorID, thirtyDaysAgo).
		Distinct("patient_id").Count(&activePatients)

	var totalPrescriptions, monthlyPrescriptions int64
	h.DB.Model(&models.Prescription{}).Where("doctor_id = ?", doctorID).Count(&totalPrescriptions)
	h.DB.Model(&models.Prescription{}).
		Where("doctor_id = ? AND date_issued >= ?", doctorID, thirtyDaysAgo).
		Count(&monthlyPrescriptions)

	utils.Success(c, "Analytics fetched successfully", gin.H{
		"totalAppointments":     total,
		"completedAppointments": completed,
		"pendingAppointments":   pending,
		"weeklyAppointments":    weekly,
		"monthlyAppointments":   monthly,
		"monthlyCompleted":      monthlyCompleted,
		"totalPatients":         totalPatients,
		"activePatients":        activePatients,
		"totalPrescriptions":    totalPrescriptions,
		"monthlyPrescriptions":  monthlyPrescriptions,
	})
}

// PatientRecord lets a doctor review one patient's appointment history and
// prescriptions.
func (h *DashboardHandler) PatientRecord(c *gin.Context) {
	var patient models.User
	err := h.DB.Where("id = ? AND role = ?", c.Param("id"), models.RolePatient).
		First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	var appointments []models.Appointment
	h.DB.Preload("Doctor").
		Where("patient_id = ?", patient.ID).
		Order("appointment_time desc").
		Find(&appointments)

	var prescriptions []models.Prescription
	h.DB.Preload("Doctor").
		Where("patient_id = ?", patient.ID).
		Order("date_issued desc").
		Find(&prescriptions)

	utils.Success(c, "Patient record fetched successfully", gin.H{
		"patient":            patient.Sanitize(),
		"appointments":       appointments,
		"prescriptions":      prescriptions,
		"hasConsultedBefore": len(appointments) > 0,
	})
}

// AdminDashboard returns system-wide headline statistics.
func (h *DashboardHandler) AdminDashboard(c *gin.Context) {
	now := time.Now()
	thirtyDaysAgo := now.AddDate(0, 0, -30)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	countUsers := func(conds ...interface{}) int64 {
		var n int64
		q := h.DB.Model(&models.User{})
		if len(conds) > 0 {
			q = q.Where(conds[0], conds[1:]...)
		}
		q.Count(&n)
		return n
	}

	totalUsers := countUsers()
	totalDoctors := countUsers("role = ?", models.RoleDoctor)
	totalPatients := countUsers("role = ?", models.RolePatient)
	totalAdmins := countUsers("role = ?", models.RoleAdmin)
	newUsers := countUsers("created_at >= ?", thirtyDaysAgo)
	newPatients := countUsers("role = ? AND created_at >= ?", models.RolePatient, thirtyDaysAgo)
	newDoctors := countUsers("role = ? AND created_at >= ?", models.RoleDoctor, thirtyDaysAgo)

	var totalAppointments int64
	h.DB.Model(&models.Appointment{}).Count(&totalAppointments)
	todayAppointments := h.countAppointments("appointment_time >= ? AND appointment_time < ?",
		dayStart, dayStart.AddDate(0, 0, 1))
	completedAppointments := h.countAppointments("status = ?", models.StatusCompleted)
	pendingAppointments := h.countAppointments("status = ?", models.StatusPending)

	completionRate := 0.0
	if totalAppointments > 0 {
		completionRate = float64(completedAppointments) / float64(totalAppointments) * 100
	}

	var activePatients int64
	h.DB.Model(&models.Appointment{}).
		Where("appointment_time >= ?", thirtyDaysAgo).
		Distinct("patient_id").Count(&activePatients)

	var totalPrescriptions, monthlyPrescriptions int64
	h.DB.Model(&models.Prescription{}).Count(&totalPrescriptions)
	h.DB.Model(&models.Prescription{}).
		Where("date_issued >= ?", thirtyDaysAgo).
		Count(&monthlyPrescriptions)

	utils.Success(c, "Admin dashboard fetched successfully", gin.H{
		"totalUsers":                totalUsers,
		"totalDoctors":              totalDoctors,
		"totalPatients":             totalPatients,
		"totalAdmins":               totalAdmins,
		"newUsersThisMonth":         newUsers,
		"newPatientsThisMonth":      newPatients,
		"newDoctorsThisMonth":       newDoctors,
		"totalAppointments":         totalAppointments,
		"todayAppointments":         todayAppointments,
		"completedAppointments":     completedAppointments,
		"pendingAppointments":       pendingAppointments,
		"appointmentCompletionRate": fmt.Sprintf("%.1f", completionRate),
		"activePatients":            activePatients,
		"totalPrescriptions":        totalPrescriptions,
		"monthlyPrescriptions":      monthlyPrescriptions,
		"totalRecords":              totalUsers + totalAppointments + totalPrescriptions,
	})
}

// AdminListPrescriptions lists every prescription for the admin screens.
func (h *DashboardHandler) AdminListPrescriptions(c *gin.Context) {
	var prescriptions []models.Prescription
	err := h.DB.Preload("Doctor").Preload("Patient").
		Order("date_issued desc").
		Find(&prescriptions).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch prescriptions: "+err.Error())
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", prescriptions)
}

// AdminExportData exports users, appointments or prescriptions as a JSON or
// CSV attachment (?type=users|appointments|prescriptions&format=json|csv).
func (h *DashboardHandler) AdminExportData(c *gin.Context) {
	exportType := c.DefaultQuery("type", "users")
	formatType := c.DefaultQuery("format", "json")

	var header []string
	var rows [][]string
	var jsonData interface{}

	switch exportType {
	case "users":
		var users []models.User
		if err := h.DB.Find(&users).Error; err != nil {
			utils.InternalServerError(c, "Export failed: "+err.Error())
			return
		}
		header = []string{"id", "email", "first_name", "last_name", "role", "created_at"}
		sanitized := make([]models.UserSanitized, 0, len(users))
		for _, u := range users {
			sanitized = append(sanitized, u.Sanitize())
			rows = append(rows, []string{u.ID, u.Email, u.FirstName, u.LastName, string(u.Role),
				u.CreatedAt.Format(time.RFC3339)})
		}
		jsonData = sanitized
	case "appointments":
		var appointments []models.Appointment
		if err := h.DB.Preload("Patient").Preload("Doctor").Find(&appointments).Error; err != nil {
			utils.InternalServerError(c, "Export failed: "+err.Error())
			return
		}
		header = []string{"id", "patient", "doctor", "appointment_time", "type", "status", "symptoms", "notes", "created_at"}
		for _, a := range appointments {
			rows = append(rows, []string{a.ID, a.Patient.Email, a.Doctor.Email,
				a.AppointmentTime.Format(time.RFC3339), string(a.Type), string(a.Status),
				a.Symptoms, a.Notes, a.CreatedAt.Format(time.RFC3339)})
		}
		jsonData = appointments
	case "prescriptions":
		var prescriptions []models.Prescription
		if err := h.DB.Preload("Doctor").Preload("Patient").Find(&prescriptions).Error; err != nil {
			utils.InternalServerError(c, "Export failed: "+err.Error())
			return
		}
		header = []string{"id", "doctor", "patient", "medicine", "dosage", "instructions", "date_issued"}
		for _, p := range prescriptions {
			rows = append(rows, []string{p.ID, p.Doctor.Email, p.Patient.Email,
				p.Medicine, p.Dosage, p.Instructions, p.DateIssued.Format(time.RFC3339)})
		}
		jsonData = prescriptions
	default:
		utils.BadRequest(c, "Invalid export type: "+exportType)
		return
	}

	switch formatType {
	case "json":
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=\"%s_export.json\"", exportType))
		c.JSON(http.StatusOK, jsonData)
	case "csv":
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=\"%s_export.csv\"", exportType))
		c.Header("Content-Type", "text/csv")
		w := csv.NewWriter(c.Writer)
		_ = w.Write(header)
		_ = w.WriteAll(rows)
		w.Flush()
	default:
		utils.BadRequest(c, "Invalid export format: "+formatType)
	}
}
