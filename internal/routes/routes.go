package routes

import (
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/scheduling"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	scheduler := scheduling.NewService(db)

	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db, scheduler)
	slotHandler := handlers.NewSlotHandler(db)
	prescriptionHandler := handlers.NewPrescriptionHandler(db)
	dashboardHandler := handlers.NewDashboardHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
			authRoutes.POST("/reset-password", authHandler.ResetPassword)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User management routes
		userRoutes := private.Group("/users")
		{
			// Doctor directory, used by patients when booking
			userRoutes.GET("/doctors", userHandler.GetDoctors)

			// Patient lists for doctors and admins
			userRoutes.GET("/doctor-patients",
				middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin),
				userHandler.GetDoctorPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("",
				middleware.RoleAuthMiddleware(models.RolePatient),
				appointmentHandler.BookAppointment)

			// Role-aware listing: patients see their own, doctors their
			// schedule, admins everything.
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)

			appointmentRoutes.GET("/upcoming",
				middleware.RoleAuthMiddleware(models.RolePatient),
				appointmentHandler.UpcomingAppointments)
			appointmentRoutes.GET("/history",
				middleware.RoleAuthMiddleware(models.RolePatient),
				appointmentHandler.AppointmentHistory)

			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)

			appointmentRoutes.PATCH("/:id/reschedule",
				middleware.RoleAuthMiddleware(models.RolePatient),
				appointmentHandler.RescheduleAppointment)
			appointmentRoutes.PATCH("/:id/cancel",
				middleware.RoleAuthMiddleware(models.RolePatient),
				appointmentHandler.CancelAppointment)
			appointmentRoutes.PATCH("/:id/complete",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				appointmentHandler.CompleteAppointment)
			appointmentRoutes.PATCH("/:id/notes",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				appointmentHandler.AddAppointmentNotes)
		}

		// Availability grid for a doctor on a date
		private.GET("/doctors/:id/availability", appointmentHandler.GetDoctorAvailability)

		// Doctor-declared slot management
		slotRoutes := private.Group("/slots")
		slotRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			slotRoutes.POST("", slotHandler.CreateSlot)
			slotRoutes.GET("", slotHandler.GetMySlots)
			slotRoutes.PUT("/:id", slotHandler.UpdateSlot)
			slotRoutes.DELETE("/:id", slotHandler.DeleteSlot)
		}

		// Prescription routes
		prescriptionRoutes := private.Group("/prescriptions")
		{
			prescriptionRoutes.POST("",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				prescriptionHandler.CreatePrescription)
			prescriptionRoutes.GET("",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				prescriptionHandler.GetMyPrescriptions)
			prescriptionRoutes.GET("/mine",
				middleware.RoleAuthMiddleware(models.RolePatient),
				prescriptionHandler.GetPatientPrescriptions)
			prescriptionRoutes.PUT("/:id",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				prescriptionHandler.UpdatePrescription)
			prescriptionRoutes.GET("/:id/download", prescriptionHandler.DownloadPrescription)
		}

		// Dashboards and analytics
		dashboardRoutes := private.Group("/dashboard")
		{
			dashboardRoutes.GET("/patient",
				middleware.RoleAuthMiddleware(models.RolePatient),
				dashboardHandler.PatientDashboard)
			dashboardRoutes.GET("/patient/notifications",
				middleware.RoleAuthMiddleware(models.RolePatient),
				dashboardHandler.PatientNotifications)
			dashboardRoutes.GET("/doctor",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				dashboardHandler.DoctorDashboard)
			dashboardRoutes.GET("/doctor/schedule",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				dashboardHandler.DoctorSchedule)
			dashboardRoutes.GET("/doctor/analytics",
				middleware.RoleAuthMiddleware(models.RoleDoctor),
				dashboardHandler.DoctorAnalytics)
			dashboardRoutes.GET("/admin",
				middleware.RoleAuthMiddleware(models.RoleAdmin),
				dashboardHandler.AdminDashboard)
		}

		// Doctor's view of one patient's record
		private.GET("/patients/:id/record",
			middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin),
			dashboardHandler.PatientRecord)

		// Admin data screens and exports
		adminData := private.Group("/admin")
		adminData.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminData.GET("/prescriptions", dashboardHandler.AdminListPrescriptions)
			adminData.GET("/export", dashboardHandler.AdminExportData)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
