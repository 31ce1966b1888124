package units

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
	"github.com/meridian-erp/meridian/internal/rbac"
	internalShared "github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/view"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *internalShared.CSRFManager
	sessions  *internalShared.SessionManager
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *internalShared.CSRFManager, sessions *internalShared.SessionManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, rbac: rbac}
}

// MountRoutes registers unit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermMasterDataView))
		r.Get("/units", h.List)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermMasterDataEdit))
		r.Get("/units/new", h.Form)
		r.Post("/units", h.Create)
		r.Get("/units/{id}/edit", h.EditForm)
		r.Post("/units/{id}/edit", h.Update)
		r.Post("/units/{id}/delete", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	units, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list units failed", "error", err)
		http.Error(w, "Failed to load units", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/masterdata/units_list.html", map[string]any{
		"Units":   units,
		"Filters": filters,
		"Total":   total,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/masterdata/unit_form.html", map[string]any{
		"Errors": map[string]string{},
		"Unit":   nil,
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	unit := Unit{
		Code: r.PostFormValue("code"),
		Name: r.PostFormValue("name"),
	}
	created, err := h.service.Create(r.Context(), unit)
	if err != nil {
		h.render(w, r, "pages/masterdata/unit_form.html", map[string]any{
			"Errors": map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Unit":   unit,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/units", "success", "Unit "+created.Code+" created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	unit, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/masterdata/unit_form.html", map[string]any{
		"Errors": map[string]string{},
		"Unit":   unit,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	unit := Unit{
		Code: r.PostFormValue("code"),
		Name: r.PostFormValue("name"),
	}
	if err := h.service.Update(r.Context(), id, unit); err != nil {
		h.render(w, r, "pages/masterdata/unit_form.html", map[string]any{
			"Errors": map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Unit":   unit,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/units", "success", "Unit updated")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete unit failed", "error", err, "id", id)
		h.redirectWithFlash(w, r, "/masterdata/units", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/units", "success", "Unit deleted")
}

func parseFilters(r *http.Request) shared.ListFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = shared.DefaultPage
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	return shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := internalShared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *internalShared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Units", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := internalShared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(internalShared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
