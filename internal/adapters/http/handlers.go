package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ndelia/wren/internal/application"
	"github.com/ndelia/wren/internal/domain"
)

type Handlers struct {
	service *application.LinkService
	baseURL string
	repo    domain.LinkRepository
}

func NewHandlers(service *application.LinkService, baseURL string, repo domain.LinkRepository) *Handlers {
	return &Handlers{
		service: service,
		baseURL: baseURL,
		repo:    repo,
	}
}

// LinkResponse is the owner-facing projection of a link.
type LinkResponse struct {
	ShortURL     string     `json:"shortUrl"`
	ShortCode    string     `json:"shortCode"`
	CustomAlias  *string    `json:"customAlias,omitempty"`
	OriginalURL  string     `json:"originalUrl"`
	ClickCount   int64      `json:"clickCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// RedirectResponse is returned by the resolution endpoint. Metadata fields
// are null on degraded results, where only the cached URL is known.
type RedirectResponse struct {
	OriginalURL  string     `json:"originalUrl"`
	CreatedAt    *time.Time `json:"createdAt"`
	ClickCount   *int64     `json:"clickCount"`
	LastAccessed *time.Time `json:"lastAccessedAt"`
}

func toLinkResponse(link *domain.Link, baseURL string) LinkResponse {
	return LinkResponse{
		ShortURL:     baseURL + "/" + link.ShortCode,
		ShortCode:    link.ShortCode,
		CustomAlias:  link.CustomAlias,
		OriginalURL:  link.OriginalURL,
		ClickCount:   link.ClickCount,
		CreatedAt:    link.CreatedAt,
		LastAccessed: link.LastAccessed,
		ExpiresAt:    link.ExpiresAt,
	}
}

// HandleHealth handles the health check endpoint.
//
//	@Summary		Health check endpoint
//	@Description	Check if the service is running
//	@Tags			health
//	@Produce		plain
//	@Success		200	{string}	string	"OK"
//	@Router			/health [get]
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// HandleReady handles the readiness check endpoint.
//
//	@Summary		Readiness check endpoint
//	@Description	Check if the service is ready to serve requests (includes database connectivity)
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	object{status=string,timestamp=string}	"Service is ready"
//	@Failure		503	{object}	ErrorResponse							"Service is not ready"
//	@Router			/ready [get]
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.HealthCheck(ctx); err != nil {
		slog.Error("Readiness check failed", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Service not ready: database unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleShorten handles link creation.
//
//	@Summary		Create a short link
//	@Description	Create a shortened link for a target URL, optionally with a custom alias and expiry
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			request	body		application.CreateLinkRequest	true	"Link to create"
//	@Success		201		{object}	LinkResponse					"Successfully created link"
//	@Failure		400		{object}	ValidationErrorResponse			"Invalid request or validation error"
//	@Failure		401		{object}	ErrorResponse					"Missing principal"
//	@Failure		409		{object}	ErrorResponse					"Custom alias already taken"
//	@Router			/links/shorten [post]
func (h *Handlers) HandleShorten(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req application.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAliasExists):
			respondWithError(w, http.StatusConflict, "Custom alias already taken")
		case errors.Is(err, domain.ErrInvalidURL):
			respondWithError(w, http.StatusBadRequest, "Invalid target URL")
		default:
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				handleValidationError(w, validationErrors)
				return
			}
			slog.Error("Failed to create link", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to create link")
		}
		return
	}

	slog.Info("Created link", "short_code", link.ShortCode, "original_url", link.OriginalURL)
	respondWithJSON(w, http.StatusCreated, toLinkResponse(link, h.baseURL))
}

// HandleResolve handles link resolution.
//
//	@Summary		Resolve a short link
//	@Description	Resolve a short code or alias to its target URL, recording the access
//	@Tags			links
//	@Produce		json
//	@Param			code	path		string	true	"Short code or custom alias"
//	@Success		200		{object}	RedirectResponse
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Failure		410		{object}	ErrorResponse	"Link expired"
//	@Router			/{code} [get]
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	res, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLinkNotFound):
			respondWithError(w, http.StatusNotFound, "Link not found")
		case errors.Is(err, domain.ErrLinkExpired):
			respondWithError(w, http.StatusGone, "Link expired")
		default:
			slog.Error("Failed to resolve link", "code", code, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to resolve link")
		}
		return
	}

	resp := RedirectResponse{OriginalURL: res.URL}
	if !res.Degraded {
		resp.CreatedAt = &res.Link.CreatedAt
		resp.ClickCount = &res.Link.ClickCount
		resp.LastAccessed = res.Link.LastAccessed
	}

	slog.Info("Resolved link", "code", code, "degraded", res.Degraded)
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleInfo handles the public link info endpoint.
//
//	@Summary		Link info
//	@Description	Public read-only projection of a link; never mutates counters
//	@Tags			links
//	@Produce		json
//	@Param			code	path		string	true	"Short code or custom alias"
//	@Success		200		{object}	LinkResponse
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Router			/{code}/info [get]
func (h *Handlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	link, err := h.service.Info(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			respondWithError(w, http.StatusNotFound, "Link not found")
			return
		}
		slog.Error("Failed to get link info", "code", code, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get link info")
		return
	}

	respondWithJSON(w, http.StatusOK, toLinkResponse(link, h.baseURL))
}

// HandleUpdate handles target URL updates. Owner-only.
//
//	@Summary		Update a link's target URL
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			code	path		string							true	"Short code"
//	@Param			request	body		application.UpdateLinkRequest	true	"New target URL"
//	@Success		200		{object}	LinkResponse
//	@Failure		403		{object}	ErrorResponse	"Not the link owner"
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Router			/links/{code} [put]
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	code := chi.URLParam(r, "code")

	var req application.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.service.Update(r.Context(), ownerID, code, req)
	if err != nil {
		h.respondOwnedOpError(w, code, "update", err)
		return
	}

	slog.Info("Updated link", "short_code", link.ShortCode, "original_url", link.OriginalURL)
	respondWithJSON(w, http.StatusOK, toLinkResponse(link, h.baseURL))
}

// HandleDelete handles link deletion. Owner-only.
//
//	@Summary		Delete a link
//	@Tags			links
//	@Param			code	path	string	true	"Short code"
//	@Success		204		"Link deleted"
//	@Failure		403		{object}	ErrorResponse	"Not the link owner"
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Router			/links/{code} [delete]
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	code := chi.URLParam(r, "code")

	if err := h.service.Delete(r.Context(), ownerID, code); err != nil {
		h.respondOwnedOpError(w, code, "delete", err)
		return
	}

	slog.Info("Deleted link", "short_code", code)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles the owner-only stats endpoint.
//
//	@Summary		Link statistics
//	@Description	Full link record including counters; owner-only
//	@Tags			links
//	@Produce		json
//	@Param			code	path		string	true	"Short code"
//	@Success		200		{object}	LinkResponse
//	@Failure		403		{object}	ErrorResponse	"Not the link owner"
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Router			/links/{code}/stats [get]
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	code := chi.URLParam(r, "code")

	link, err := h.service.Stats(r.Context(), ownerID, code)
	if err != nil {
		h.respondOwnedOpError(w, code, "stats", err)
		return
	}

	respondWithJSON(w, http.StatusOK, toLinkResponse(link, h.baseURL))
}

// HandleSearch handles the public substring search over target URLs.
//
//	@Summary		Search links by target URL
//	@Tags			links
//	@Produce		json
//	@Param			originalUrl	query		string	true	"Substring of the target URL"
//	@Success		200			{array}		LinkResponse
//	@Failure		404			{object}	ErrorResponse	"No links match"
//	@Router			/links/search [get]
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	substr := r.URL.Query().Get("originalUrl")
	if substr == "" {
		respondWithError(w, http.StatusBadRequest, "originalUrl query parameter is required")
		return
	}

	links, err := h.service.Search(r.Context(), substr)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			respondWithError(w, http.StatusNotFound, "No links found for this URL")
			return
		}
		slog.Error("Failed to search links", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to search links")
		return
	}

	responses := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, toLinkResponse(link, h.baseURL))
	}
	respondWithJSON(w, http.StatusOK, responses)
}

// respondOwnedOpError maps errors from owner-only operations. Forbidden is an
// ownership failure and is kept distinct from NotFound.
func (h *Handlers) respondOwnedOpError(w http.ResponseWriter, code, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrLinkNotFound):
		respondWithError(w, http.StatusNotFound, "Link not found")
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Not the link owner")
	case errors.Is(err, domain.ErrInvalidURL):
		respondWithError(w, http.StatusBadRequest, "Invalid target URL")
	default:
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			handleValidationError(w, validationErrors)
			return
		}
		slog.Error("Link operation failed", "operation", op, "code", code, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Operation failed")
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     map[string]string `json:"error"`
	Timestamp string            `json:"timestamp" example:"2024-01-31T12:00:00Z"`
}

// ValidationErrorResponse represents a validation error response.
type ValidationErrorResponse struct {
	Details map[string]string `json:"details"`
	Error   string            `json:"error" example:"Validation failed"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]interface{}{
		"error": map[string]string{
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func handleValidationError(w http.ResponseWriter, validationErrors validator.ValidationErrors) {
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		field := getJSONFieldName(e)
		switch e.Tag() {
		case "required":
			errorMessages[field] = fmt.Sprintf("%s is required", field)
		case "alphanum":
			errorMessages[field] = fmt.Sprintf("%s must contain only alphanumeric characters", field)
		case "min":
			errorMessages[field] = fmt.Sprintf("%s must be at least %s characters long", field, e.Param())
		case "max":
			errorMessages[field] = fmt.Sprintf("%s must be at most %s characters long", field, e.Param())
		default:
			errorMessages[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   "Validation failed",
		"details": errorMessages,
	})
}

// getJSONFieldName extracts the JSON tag name from a validation error
func getJSONFieldName(e validator.FieldError) string {
	structType := getStructTypeFromError(e)
	if structType == nil {
		return e.Field()
	}

	field, found := structType.FieldByName(e.StructField())
	if !found {
		return e.Field()
	}

	jsonTag := field.Tag.Get("json")
	if jsonTag == "" {
		return e.Field()
	}

	if commaIndex := strings.Index(jsonTag, ","); commaIndex != -1 {
		jsonTag = jsonTag[:commaIndex]
	}

	return jsonTag
}

// getStructTypeFromError extracts the struct type from a validation error
func getStructTypeFromError(e validator.FieldError) reflect.Type {
	// The StructNamespace gives us something like "CreateLinkRequest.OriginalURL"
	namespace := e.StructNamespace()

	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return nil
	}

	return getTypeFromStructName(parts[0])
}

// getTypeFromStructName returns the reflect.Type for a given struct name
// This acts as a registry for known request types
func getTypeFromStructName(structName string) reflect.Type {
	switch structName {
	case "CreateLinkRequest":
		return reflect.TypeOf(application.CreateLinkRequest{})
	case "UpdateLinkRequest":
		return reflect.TypeOf(application.UpdateLinkRequest{})
	default:
		return nil
	}
}
