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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SlotHandlerSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	doctor models.User
}

func TestSlotHandlerSuite(t *testing.T) {
	suite.Run(t, new(SlotHandlerSuite))
}

func (s *SlotHandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), models.Migrate(db))
	s.db = db

	s.doctor = models.User{Email: "dr.mensah@example.com", Role: models.RoleDoctor}
	require.NoError(s.T(), s.doctor.SetPassword("sup3r-secret"))
	require.NoError(s.T(), db.Create(&s.doctor).Error)

	slotHandler := NewSlotHandler(db)

	// Stands in for AuthMiddleware: every request runs as the doctor.
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", s.doctor.ID)
		c.Set("userRole", s.doctor.Role)
	})
	router.POST("/slots", slotHandler.CreateSlot)
	router.GET("/slots", slotHandler.GetMySlots)
	s.router = router
}

func (s *SlotHandlerSuite) post(body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/slots", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *SlotHandlerSuite) TestCreateSlot() {
	start := time.Now().Add(24 * time.Hour)
	w := s.post(gin.H{
		"startTime": start,
		"endTime":   start.Add(time.Hour),
	})
	s.Equal(http.StatusCreated, w.Code)

	var count int64
	s.db.Model(&models.Slot{}).Where("doctor_id = ?", s.doctor.ID).Count(&count)
	s.EqualValues(1, count)
}

func (s *SlotHandlerSuite) TestCreateSlotInvertedWindow() {
	start := time.Now().Add(24 * time.Hour)
	w := s.post(gin.H{
		"startTime": start,
		"endTime":   start.Add(-time.Hour),
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "start time must be before end time")
}

func (s *SlotHandlerSuite) TestCreateSlotInPast() {
	start := time.Now().Add(-2 * time.Hour)
	w := s.post(gin.H{
		"startTime": start,
		"endTime":   start.Add(time.Hour),
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "cannot create slots in the past")
}

func (s *SlotHandlerSuite) TestCreateSlotDuplicateStart() {
	start := time.Now().Add(24 * time.Hour)
	w := s.post(gin.H{
		"startTime": start,
		"endTime":   start.Add(time.Hour),
	})
	s.Require().Equal(http.StatusCreated, w.Code)

	// Same doctor, same start instant, different end.
	w = s.post(gin.H{
		"startTime": start,
		"endTime":   start.Add(2 * time.Hour),
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "already starts at this time")
}
