package routes

import (
	"github.com/dcode-github/property_marketplace/config"
	"github.com/dcode-github/property_marketplace/controllers"
	"github.com/dcode-github/property_marketplace/middleware"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func Routes(router *mux.Router, api *controllers.API, tokens *utils.TokenIssuer, redisClient *redis.Client, limits config.RateLimitConfig, logger *zap.Logger) {
	router.Use(middleware.RateLimit(limits, redisClient, logger))

	router.HandleFunc("/health", controllers.HealthCheck()).Methods("GET")

	// Auth routes
	router.HandleFunc("/register", api.RegisterUser()).Methods("POST")
	router.HandleFunc("/login", api.LoginUser()).Methods("POST")

	// Public listings
	router.HandleFunc("/properties", api.GetAllProperties()).Methods("GET")
	router.HandleFunc("/properties/{id}", api.GetProperty()).Methods("GET")

	// Routes that require authentication
	authenticated := router.PathPrefix("/api").Subrouter()
	authenticated.Use(middleware.Auth(tokens, logger))

	// Property routes
	authenticated.HandleFunc("/properties", api.CreateProperty()).Methods("POST")
	authenticated.HandleFunc("/properties/{id}", api.UpdateProperty()).Methods("PUT")
	authenticated.HandleFunc("/properties/{id}", api.DeleteProperty()).Methods("DELETE")

	// Appointment routes
	authenticated.HandleFunc("/appointments", api.ScheduleAppointment()).Methods("POST")
	authenticated.HandleFunc("/appointments", api.ListAppointments()).Methods("GET")
	authenticated.HandleFunc("/appointments/{id}", api.GetAppointment()).Methods("GET")
	authenticated.HandleFunc("/appointments/{id}/status", api.UpdateAppointmentStatus()).Methods("PATCH")
	authenticated.HandleFunc("/appointments/{id}/cancel", api.CancelAppointment()).Methods("POST")
	authenticated.HandleFunc("/appointments/{id}/meeting-link", api.UpdateMeetingLink()).Methods("PATCH")
	authenticated.HandleFunc("/appointments/{id}/feedback", api.SubmitFeedback()).Methods("POST")

	// Reviewer routes
	admin := authenticated.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(logger))
	admin.HandleFunc("/properties/{id}/approve", api.ApproveProperty()).Methods("POST")
	admin.HandleFunc("/properties/{id}/reject", api.RejectProperty()).Methods("POST")
	admin.HandleFunc("/stats", api.GetStats()).Methods("GET")
}
