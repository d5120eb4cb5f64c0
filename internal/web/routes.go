package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Pipeline, s.services.Attendance, s.logger)
	employeesHandler := handlers.NewEmployeesHandler(s.services.Guard, s.services.Store, s.logger)
	settingsHandler := handlers.NewSettingsHandler(s.services.Attendance, s.logger)
	facesHandler := handlers.NewFacesHandler(s.services.Index, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Attendance
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Post("/attendance/punch-out", attendanceHandler.PunchOut)
		r.Get("/attendance/today", attendanceHandler.Today)

		// Employees
		r.Post("/employees/register", employeesHandler.Register)
		r.Post("/employees/validate-face", employeesHandler.ValidateFace)
		r.Put("/employees/{id}/photo", employeesHandler.UpdatePhoto)
		r.Get("/employees/{id}/photo", employeesHandler.GetPhoto)
		r.Delete("/employees/{id}", employeesHandler.Delete)

		// Office settings
		r.Get("/office-settings", settingsHandler.Get)
		r.Put("/office-settings", settingsHandler.Update)

		// Diagnostics
		r.Get("/faces/similarities", facesHandler.Similarities)
	})
}
