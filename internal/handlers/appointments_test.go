package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type AppointmentHandlerSuite struct {
	suite.Suite
	db      *gorm.DB
	router  *gin.Engine
	patient models.User
	doctor  models.User
}

func TestAppointmentHandlerSuite(t *testing.T) {
	suite.Run(t, new(AppointmentHandlerSuite))
}

func (s *AppointmentHandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), models.Migrate(db))
	s.db = db

	s.patient = s.createUser("amira@example.com", models.RolePatient)
	s.doctor = s.createUser("dr.okafor@example.com", models.RoleDoctor)

	scheduler := scheduling.NewService(db)
	appointmentHandler := NewAppointmentHandler(db, scheduler)
	dashboardHandler := NewDashboardHandler(db)

	// Stands in for AuthMiddleware: every request runs as the patient.
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", s.patient.ID)
		c.Set("userRole", s.patient.Role)
	})
	router.POST("/appointments", appointmentHandler.BookAppointment)
	router.GET("/appointments", appointmentHandler.GetAppointmentsForUser)
	router.PATCH("/appointments/:id/cancel", appointmentHandler.CancelAppointment)
	router.GET("/dashboard/patient/notifications", dashboardHandler.PatientNotifications)
	s.router = router
}

func (s *AppointmentHandlerSuite) createUser(email string, role models.Role) models.User {
	user := models.User{Email: email, Role: role}
	require.NoError(s.T(), user.SetPassword("sup3r-secret"))
	require.NoError(s.T(), s.db.Create(&user).Error)
	return user
}

func (s *AppointmentHandlerSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AppointmentHandlerSuite) bookingBody() gin.H {
	tomorrow := time.Now().AddDate(0, 0, 1)
	return gin.H{
		"doctorId": s.doctor.ID,
		"date":     tomorrow.Format(scheduling.DateLayout),
		"time":     "10:00",
		"symptoms": "persistent cough",
	}
}

func (s *AppointmentHandlerSuite) TestBookEndpoint() {
	w := s.do(http.MethodPost, "/appointments", s.bookingBody())
	s.Equal(http.StatusCreated, w.Code)
	s.Contains(w.Body.String(), "Appointment booked successfully")

	// Same doctor, same instant, booked again.
	w = s.do(http.MethodPost, "/appointments", s.bookingBody())
	s.Equal(http.StatusConflict, w.Code)
}

func (s *AppointmentHandlerSuite) TestBookUnknownDoctor() {
	body := s.bookingBody()
	body["doctorId"] = uuid.New().String()
	w := s.do(http.MethodPost, "/appointments", body)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *AppointmentHandlerSuite) TestCancelRequiresConfirmation() {
	w := s.do(http.MethodPost, "/appointments", s.bookingBody())
	s.Require().Equal(http.StatusCreated, w.Code)

	var created struct {
		Data models.Appointment `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))

	path := "/appointments/" + created.Data.ID + "/cancel"
	w = s.do(http.MethodPatch, path, gin.H{"confirm": false})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "explicitly confirmed")

	w = s.do(http.MethodPatch, path, gin.H{"confirm": true})
	s.Equal(http.StatusOK, w.Code)

	var stored models.Appointment
	s.Require().NoError(s.db.First(&stored, "id = ?", created.Data.ID).Error)
	s.Equal(models.StatusCancelled, stored.Status)
	s.Nil(stored.BookingKey)
}

func (s *AppointmentHandlerSuite) TestListRejectsUnknownStatusFilter() {
	w := s.do(http.MethodGet, "/appointments?status=bogus", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AppointmentHandlerSuite) TestPatientNotifications() {
	soonKey := models.MakeBookingKey(s.doctor.ID, time.Now().Add(2*time.Hour))
	overdueKey := models.MakeBookingKey(s.doctor.ID, time.Now().Add(-3*time.Hour))
	s.Require().NoError(s.db.Create(&models.Appointment{
		PatientID:       s.patient.ID,
		DoctorID:        s.doctor.ID,
		AppointmentTime: time.Now().Add(2 * time.Hour),
		Status:          models.StatusPending,
		BookingKey:      &soonKey,
	}).Error)
	s.Require().NoError(s.db.Create(&models.Appointment{
		PatientID:       s.patient.ID,
		DoctorID:        s.doctor.ID,
		AppointmentTime: time.Now().Add(-3 * time.Hour),
		Status:          models.StatusPending,
		BookingKey:      &overdueKey,
	}).Error)

	w := s.do(http.MethodGet, "/dashboard/patient/notifications", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Notifications []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"notifications"`
		Count int `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(2, resp.Count)
	s.Contains(resp.Notifications[0].Message, "1 appointment in the next 24 hours")
	s.Contains(resp.Notifications[1].Message, "1 overdue appointment")
}

// TestAvailabilityDefaultDateFollowsServiceClock pins the ?date default to
// the scheduler's clock rather than the wall clock.
func TestAvailabilityDefaultDateFollowsServiceClock(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	doctor := models.User{Email: "dr.haile@example.com", Role: models.RoleDoctor}
	require.NoError(t, doctor.SetPassword("sup3r-secret"))
	require.NoError(t, db.Create(&doctor).Error)

	clock := time.Date(2025, 1, 10, 12, 0, 0, 0, time.Local)
	scheduler := scheduling.NewServiceWithClock(db, func() time.Time { return clock })
	handler := NewAppointmentHandler(db, scheduler)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", doctor.ID)
		c.Set("userRole", doctor.Role)
	})
	router.GET("/doctors/:id/availability", handler.GetDoctorAvailability)

	req := httptest.NewRequest(http.MethodGet, "/doctors/"+doctor.ID+"/availability", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Date  string   `json:"date"`
			Slots []string `json:"slots"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "2025-01-10", resp.Data.Date)
	// Clock reads 12:00, so the grid starts after it.
	require.NotEmpty(t, resp.Data.Slots)
	require.Equal(t, "12:30", resp.Data.Slots[0])
}
