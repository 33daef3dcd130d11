// Package apiv1 exposes the payment-to-access pipeline over JSON/HTTP.
package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/api"
	"learning-platform-core/internal/infra/logging"
	"learning-platform-core/internal/usecase"
)

// Server holds the handler set for /api/v1.
type Server struct {
	payUC    usecase.PaymentUseCase
	enrollUC usecase.EnrollmentUseCase
	accessUC usecase.AccessUseCase
	courses  repository.CourseRepository
	log      *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	enrollUC usecase.EnrollmentUseCase,
	accessUC usecase.AccessUseCase,
	courses repository.CourseRepository,
	logger *zerolog.Logger,
) *Server {
	return &Server{payUC: payUC, enrollUC: enrollUC, accessUC: accessUC, courses: courses, log: logger}
}

// RegisterAPIV1 mounts all routes on the router. auth guards the
// authenticated surface; the topic route takes the optional variant so free
// previews work for anonymous callers.
func RegisterAPIV1(r chi.Router, s *Server, auth *api.Authenticator) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/courses", s.handleListCourses)
		r.Get("/courses/{courseID}", s.handleGetCourse)

		r.With(auth.Optional()).
			Get("/courses/{courseID}/sections/{section}/topics/{topic}", s.handleTopicAccess)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require())

			r.Get("/courses/{courseID}/access", s.handleCourseAccess)
			r.Get("/courses/{courseID}/eligibility", s.handleEligibility)

			r.Post("/payments/intent", s.handleCreateIntent)
			r.Post("/payments/verify", s.handleVerify)
			r.Get("/payments", s.handleListPayments)

			r.Get("/enrollments", s.handleListEnrollments)
			r.Post("/enrollments/{enrollmentID}/progress", s.handleRecordProgress)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

//
// ---------------- wire DTOs ----------------
//

type coursePayload struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Price           int64           `json:"price"`
	Currency        string          `json:"currency"`
	AccessDuration  string          `json:"access_duration"`
	Sections        []model.Section `json:"sections,omitempty"`
	EnrollmentCount int             `json:"enrollment_count"`
}

func toCoursePayload(c *model.Course) coursePayload {
	return coursePayload{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Price:           c.Price,
		Currency:        c.Currency,
		AccessDuration:  c.AccessDuration.String(),
		Sections:        c.Sections,
		EnrollmentCount: c.EnrollmentCount,
	}
}

type paymentPayload struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	CourseID         *string    `json:"course_id,omitempty"`
	Provider         string     `json:"provider"`
	OrderID          string     `json:"order_id"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

func toPaymentPayload(p *model.Payment) paymentPayload {
	return paymentPayload{
		ID:               p.ID,
		Type:             string(p.Type),
		Status:           string(p.Status),
		Amount:           p.Amount,
		Currency:         p.Currency,
		CourseID:         p.CourseID,
		Provider:         p.Provider,
		OrderID:          p.OrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		CreatedAt:        p.CreatedAt,
		PaidAt:           p.PaidAt,
	}
}

type enrollmentPayload struct {
	ID         string         `json:"id"`
	CourseID   string         `json:"course_id"`
	Status     string         `json:"status"`
	EnrolledAt time.Time      `json:"enrolled_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Progress   model.Progress `json:"progress"`
}

func toEnrollmentPayload(e *model.Enrollment) enrollmentPayload {
	return enrollmentPayload{
		ID:         e.ID,
		CourseID:   e.CourseID,
		Status:     string(e.EffectiveStatus(time.Now())),
		EnrolledAt: e.EnrolledAt,
		ExpiresAt:  e.ExpiresAt,
		Progress:   e.Progress,
	}
}

//
// ---------------- handlers ----------------
//

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.courses.ListPublished(r.Context(), nil)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	items := make([]coursePayload, 0, len(courses))
	for _, c := range courses {
		items = append(items, toCoursePayload(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.courses.FindByID(r.Context(), nil, chi.URLParam(r, "courseID"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	// Drafts are invisible to the public catalog.
	if c.Status != model.CourseStatusPublished {
		s.writeErr(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toCoursePayload(c))
}

func (s *Server) handleCourseAccess(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())
	e, err := s.accessUC.CourseAccess(r.Context(), user, chi.URLParam(r, "courseID"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access":     "granted",
		"enrollment": toEnrollmentPayload(e),
	})
}

func (s *Server) handleTopicAccess(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	section, err1 := strconv.Atoi(chi.URLParam(r, "section"))
	topic, err2 := strconv.Atoi(chi.URLParam(r, "topic"))
	if err1 != nil || err2 != nil {
		s.writeErr(w, r, domain.ErrNotFound)
		return
	}

	user := api.UserFrom(r.Context())
	e, err := s.accessUC.TopicAccess(r.Context(), user, courseID, section, topic)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	resp := map[string]interface{}{"access": "granted"}
	if e == nil {
		resp["access"] = "free_preview"
	} else {
		resp["enrollment"] = toEnrollmentPayload(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())
	if err := s.accessUC.EnrollmentEligibility(r.Context(), user, chi.URLParam(r, "courseID")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": true})
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string `json:"type"`
		CourseID string `json:"course_id"`
	}
	if r.Body == nil || json.NewDecoder(r.Body).Decode(&req) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	user := api.UserFrom(r.Context())
	kind := model.PaymentType(req.Type)

	// Purchase intents pass the full eligibility gate (registration fee,
	// publication, existing enrollment) before anything reaches the gateway.
	if kind == model.PaymentTypeCourse {
		if err := s.accessUC.EnrollmentEligibility(r.Context(), user, req.CourseID); err != nil {
			s.writeErr(w, r, err)
			return
		}
	}

	p, err := s.payUC.CreateIntent(r.Context(), user.ID, kind, req.CourseID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentPayload(p))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID        string `json:"payment_id"`
		OrderID          string `json:"order_id"`
		GatewayPaymentID string `json:"gateway_payment_id"`
		Signature        string `json:"signature"`
	}
	if r.Body == nil || json.NewDecoder(r.Body).Decode(&req) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	p, err := s.payUC.Verify(r.Context(), req.PaymentID, req.OrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	// Callers must not verify someone else's payment.
	if user := api.UserFrom(r.Context()); user == nil || p.UserID != user.ID {
		s.writeErr(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentPayload(p))
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())
	payments, err := s.payUC.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	items := make([]paymentPayload, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPaymentPayload(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())
	enrollments, err := s.enrollUC.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	items := make([]enrollmentPayload, 0, len(enrollments))
	for _, e := range enrollments {
		items = append(items, toEnrollmentPayload(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Section int `json:"section"`
		Topic   int `json:"topic"`
	}
	if r.Body == nil || json.NewDecoder(r.Body).Decode(&req) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	user := api.UserFrom(r.Context())
	e, err := s.enrollUC.RecordProgress(r.Context(), user.ID, chi.URLParam(r, "enrollmentID"), req.Section, req.Topic)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentPayload(e))
}

//
// ---------------- error mapping ----------------
//

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors to HTTP. Denials that carry a purchase call to
// action serialize their payload so clients render the upsell without a second
// lookup.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var notEnrolled *domain.NotEnrolledError
	if errors.As(err, &notEnrolled) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":     "not_enrolled",
			"course_id": notEnrolled.CourseID,
			"title":     notEnrolled.Title,
			"price":     notEnrolled.Price,
			"currency":  notEnrolled.Currency,
		})
		return
	}
	var feeRequired *domain.RegistrationFeeRequiredError
	if errors.As(err, &feeRequired) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":    "registration_fee_required",
			"amount":   feeRequired.Amount,
			"currency": feeRequired.Currency,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	case errors.Is(err, domain.ErrEnrollmentExpired):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "enrollment_expired"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCourseNotPublished):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrAlreadyEnrolled),
		errors.Is(err, domain.ErrAlreadySatisfied),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSignatureMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "signature_mismatch"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
