package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"biovault/internal/biometric/models"
	"biovault/internal/platform/metrics"
	id "biovault/pkg/domain"
	dErrors "biovault/pkg/domain-errors"
	"biovault/pkg/platform/httputil"
	"biovault/pkg/platform/middleware/auth"
	"biovault/pkg/platform/middleware/device"
	"biovault/pkg/platform/middleware/metadata"
	request "biovault/pkg/platform/middleware/request"
	"biovault/pkg/platform/middleware/requesttime"
	"biovault/pkg/requestcontext"
)

// Service defines the biometric operations exposed over HTTP.
type Service interface {
	Enroll(ctx context.Context, req models.EnrollRequest) (*models.BiometricTemplate, error)
	Validate(ctx context.Context, req models.ValidationRequest) models.ValidationResult
	ListTemplates(ctx context.Context, userID id.UserID, modality *models.Modality) ([]*models.BiometricTemplate, error)
	HasTemplates(ctx context.Context, userID id.UserID) (bool, error)
	DeleteTemplate(ctx context.Context, templateID id.TemplateID, requesterID id.UserID) error
	DeactivateTemplate(ctx context.Context, templateID id.TemplateID, requesterID id.UserID) error
}

// Handler serves the /biometrics endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.HTTP
	jwtValidator auth.JWTValidator
}

// New creates a biometric Handler. httpMetrics may be nil.
func New(service Service, logger *slog.Logger, httpMetrics *metrics.HTTP, jwtValidator auth.JWTValidator) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      httpMetrics,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the biometric routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/biometrics", func(br chi.Router) {
		br.Use(request.Recovery(h.logger))
		br.Use(request.RequestID)
		br.Use(request.Logger(h.logger))
		br.Use(metadata.ClientMetadata)
		br.Use(requesttime.Middleware)
		if h.metrics != nil {
			br.Use(h.metrics.Middleware)
		}
		br.Use(auth.RequireAuth(h.jwtValidator, h.logger))

		br.Post("/templates", h.handleEnroll)
		br.Get("/templates", h.handleListTemplates)
		br.Delete("/templates/{id}", h.handleDeleteTemplate)
		br.Post("/templates/{id}/deactivate", h.handleDeactivateTemplate)
		br.Post("/validate", h.handleValidate)
		br.Get("/status", h.handleStatus)
	})
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tmpl, err := h.service.Enroll(ctx, models.EnrollRequest{
		UserID:        requestcontext.UserID(ctx),
		Type:          req.Modality(),
		BiometricData: req.Sample(),
		DeviceInfo:    deviceInfo(ctx, req.DeviceInfo),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTemplateResponse(tmpl))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var location *models.Location
	if req.Location != nil {
		location = &models.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Label:     req.Location.Label,
		}
	}
	result := h.service.Validate(ctx, models.ValidationRequest{
		UserID:        requestcontext.UserID(ctx),
		Type:          req.Modality(),
		BiometricData: req.Sample(),
		DeviceInfo:    deviceInfo(ctx, req.DeviceInfo),
		Location:      location,
	})
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter *models.Modality
	if raw := r.URL.Query().Get("type"); raw != "" {
		m, err := models.ParseModality(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter = &m
	}

	templates, err := h.service.ListTemplates(ctx, requestcontext.UserID(ctx), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(templates))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	has, err := h.service.HasTemplates(ctx, requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{HasTemplates: has})
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, h.service.DeleteTemplate)
}

func (h *Handler) handleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, h.service.DeactivateTemplate)
}

func (h *Handler) mutateTemplate(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, id.TemplateID, id.UserID) error,
) {
	ctx := r.Context()
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(ctx, templateID, requestcontext.UserID(ctx)); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "template operation failed",
				"template_id", templateID,
				"request_id", request.GetRequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deviceInfo prefers client-supplied context and falls back to the
// User-Agent captured by the metadata middleware.
func deviceInfo(ctx context.Context, supplied *DeviceInfoRequest) *models.DeviceInfo {
	if supplied != nil && (supplied.Type != "" || supplied.Model != "" || supplied.OS != "") {
		return &models.DeviceInfo{Type: supplied.Type, Model: supplied.Model, OS: supplied.OS}
	}
	info := device.FromUserAgent(requestcontext.UserAgent(ctx))
	if info.IsZero() {
		return nil
	}
	return &models.DeviceInfo{Type: info.Type, Model: info.Model, OS: info.OS}
}
