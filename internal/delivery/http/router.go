package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventbooking/internal/delivery/http/controllers"
	"eventbooking/internal/delivery/http/middleware"
	"eventbooking/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	authController *controllers.AuthController,
	eventController *controllers.EventController,
	registrationController *controllers.RegistrationController,
	verifier domain.TokenVerifier,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier)

	// Auth
	mux.HandleFunc("POST /auth/signup", authController.SignUp)
	mux.HandleFunc("POST /auth/login", authController.Login)

	// Events
	mux.HandleFunc("GET /events", eventController.ListEvents)
	mux.HandleFunc("POST /events", auth(eventController.CreateEvent))
	mux.HandleFunc("GET /events/{eventID}", auth(eventController.GetEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(eventController.DeleteEvent))
	mux.HandleFunc("POST /events/{eventID}/publish", auth(eventController.PublishEvent))
	mux.HandleFunc("POST /events/{eventID}/unpublish", auth(eventController.UnpublishEvent))
	mux.HandleFunc("PATCH /events/{eventID}/capacity", auth(eventController.IncreaseCapacity))

	// Registrations
	mux.HandleFunc("POST /events/{eventID}/registrations", auth(registrationController.Register))
	mux.HandleFunc("GET /events/{eventID}/registrations", auth(registrationController.ListEventRegistrations))
	mux.HandleFunc("POST /registrations/{registrationID}/cancel", auth(registrationController.Cancel))
	mux.HandleFunc("POST /registrations/{registrationID}/confirm", auth(registrationController.Confirm))
	mux.HandleFunc("POST /registrations/{registrationID}/attended", auth(registrationController.MarkAttended))
	mux.HandleFunc("POST /registrations/{registrationID}/no-show", auth(registrationController.MarkNoShow))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
