package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/middleware"
	"github.com/newoon/backoffice-server/internal/services"
)

// ScheduledMeetingsRole may read every meeting alongside admins
const ScheduledMeetingsRole = "ScheduledMeetings"

// Services bundles every service the router exposes
type Services struct {
	Auth          *services.AuthService
	Clients       *services.ClientService
	Documents     *services.DocumentService
	Notifications *services.NotificationService
	Forms         *services.FormService
	Intakes       *services.IntakeService
	Complaints    *services.ComplaintService
	Meetings      *services.MeetingService
	Roles         *services.RoleService
	Catalog       *services.CatalogService
	Assignments   *services.AssignmentService
}

// RouterConfig carries the transport settings of the router
type RouterConfig struct {
	AllowedOrigins    []string
	SecureCookie      bool
	AuthRatePerMinute int
	AuthRateBurst     int
	// UploadDir is served under UploadBaseURL when attachments live on local disk
	UploadDir     string
	UploadBaseURL string
	DBPing        PingFunc
	RedisPing     PingFunc
}

// NewRouter builds the complete HTTP surface
func NewRouter(svc Services, cfg RouterConfig, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	sugar := logger.Sugar()

	authH := NewAuthHandler(svc.Auth, cfg.SecureCookie, sugar)
	userH := NewUserHandler(svc.Clients, sugar)
	docH := NewDocumentHandler(svc.Documents, sugar)
	noteH := NewNotificationHandler(svc.Notifications, sugar)
	formH := NewFormHandler(svc.Forms, sugar)
	intakeH := NewIntakeHandler(svc.Intakes, sugar)
	complaintH := NewComplaintHandler(svc.Complaints, sugar)
	meetingH := NewMeetingHandler(svc.Meetings, sugar)
	roleH := NewRoleHandler(svc.Roles, svc.Assignments, sugar)
	catalogH := NewCatalogHandler(svc.Catalog, sugar)
	healthH := NewHealthHandler(cfg.DBPing, cfg.RedisPing, sugar)

	protect := middleware.RequireAuth(svc.Auth)
	adminOnly := middleware.AdminOnly()
	staffOnly := middleware.StaffOnly()
	authLimit := middleware.RateLimit(cfg.AuthRatePerMinute, cfg.AuthRateBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger, m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", m.Handler())
	if cfg.UploadDir != "" && strings.HasPrefix(cfg.UploadBaseURL, "/") {
		prefix := strings.TrimRight(cfg.UploadBaseURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Check)
		r.Get("/health/ready", healthH.Ready)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/admin/register", authH.RegisterAdmin)
			r.With(authLimit).Post("/client/register", authH.RegisterClient(false))
			r.With(authLimit).Post("/login", authH.Login(false))
			r.With(protect).Post("/logout", authH.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(authLimit).Post("/register", authH.RegisterClient(true))
			r.With(authLimit).Post("/login", authH.Login(true))
			r.Get("/logout", authH.Logout)
			r.Get("/getLoginStatus", authH.LoginStatus)
			r.With(authLimit).Post("/forgotpassword", authH.ForgotPassword)
			r.With(authLimit).Put("/resetpassword/{resetToken}", authH.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/getUser", authH.Me)
				r.Patch("/updateUser", authH.UpdateProfile)
				r.Patch("/updatePhoto", authH.UpdatePhoto)
				r.Patch("/changepassword", authH.ChangePassword)
				r.Get("/client-services", userH.Services)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/all-clients", userH.AllClients)
					r.Delete("/delete-client/{id}", userH.Delete)
					r.Get("/client-management-details/{id}", userH.Details)
					r.Get("/client-details/{id}", userH.Details)
					r.Get("/all-users-except-clients", userH.Staff)
					r.Get("/staff", userH.Staff)
					r.Patch("/update-status/{id}", userH.UpdateStatus)
				})
			})
		})

		r.Route("/document", func(r chi.Router) {
			r.Use(protect)
			r.Post("/create", docH.Create)
			r.Get("/all-document", docH.List)
			r.Get("/document-id/{id}", docH.Get)
			r.Put("/next-stage/{id}", docH.Advance)
			r.Put("/verify-document/{id}", docH.Verify)
			r.Put("/submit-corrections/{id}", docH.SubmitCorrections)
			r.Get("/client-documents/{clientID}", docH.ClientDocuments)
			r.Get("/user-profile-timeline", docH.Timeline)
			r.With(staffOnly).Get("/renewal-preferences-true", docH.RenewalDue)
			r.With(adminOnly).Delete("/delete-document/{id}", docH.Delete)
		})

		r.Route("/forms", func(r chi.Router) {
			r.Get("/service-names-unregister", formH.ServiceNames)
			r.With(protect).Get("/service-names", formH.ServiceNames)

			r.Group(func(r chi.Router) {
				r.Use(protect, adminOnly)
				r.Post("/create", formH.Create)
				r.Get("/all", formH.List)
				r.Get("/service-details/{id}", formH.Get)
				r.Post("/send-form-with-details", formH.SendWithDetails)
				r.Get("/services/{email}", formH.ClientServices)
				r.Post("/preview", formH.Preview)
				r.Put("/update-form/{id}", formH.Update)
				r.Get("/{id}", formH.Get)
				r.Delete("/{id}", formH.Delete)
			})
		})

		r.Route("/client-service", func(r chi.Router) {
			r.Post("/create-unregister", intakeH.Create(false))

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Post("/create", intakeH.Create(true))
				r.With(staffOnly).Patch("/update-status/{id}", intakeH.UpdateStatus)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/get-all", intakeH.List)
					r.Get("/get-unregistered", intakeH.Unregistered)
					r.Post("/send-service-form", intakeH.SendForm)
					r.Post("/send-service-form-unregister", intakeH.SendWelcome)
					r.Delete("/{id}", intakeH.Delete)
				})
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(protect)
			r.Get("/", noteH.List)
			r.Post("/", noteH.Create)
			r.Delete("/clear", noteH.Clear)
			r.Put("/{id}", noteH.MarkRead)
		})

		r.Route("/complaint", func(r chi.Router) {
			r.Use(protect)
			r.Post("/creates", complaintH.Submit)
			r.Get("/filter/{subject}", complaintH.BySubject)
			r.With(staffOnly).Get("/complaints", complaintH.List)
			r.With(adminOnly).Patch("/{id}/status", complaintH.UpdateStatus)
		})

		r.Route("/meeting-schedule", func(r chi.Router) {
			r.Use(protect)
			r.Post("/create-meeting", meetingH.Create)
			r.With(middleware.RequireRoles("admin", ScheduledMeetingsRole)).Get("/all-meetings", meetingH.List)
		})

		r.Route("/role", func(r chi.Router) {
			r.Use(protect, adminOnly)
			r.Post("/", roleH.Create)
			r.Get("/", roleH.List)
			r.Patch("/{id}", roleH.Rename)
			r.Delete("/{id}", roleH.Delete)
		})

		r.Route("/roles-task", func(r chi.Router) {
			r.Get("/roles", roleH.List)

			r.Group(func(r chi.Router) {
				r.Use(protect, adminOnly)
				r.Post("/create-role-task", roleH.CreateAssignment)
				r.Put("/update-role-task/{id}", roleH.UpdateAssignment)
				r.Get("/get-all-role-tasks", roleH.ListAssignments)
				r.Delete("/delete-role-task/{id}", roleH.DeleteAssignment)
			})
		})

		r.Route("/services", func(r chi.Router) {
			r.Use(protect, adminOnly)
			r.Post("/create", catalogH.Create)
			r.Get("/all", catalogH.List)
		})
	})

	return r
}
