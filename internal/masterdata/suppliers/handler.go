package suppliers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
	"github.com/meridian-erp/meridian/internal/rbac"
	internalShared "github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/view"
)

// MetricsEnqueuer schedules a background recalculation of delivery metrics
// for one supplier.
type MetricsEnqueuer interface {
	EnqueueSupplierMetrics(ctx context.Context, supplierID int64) error
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *internalShared.CSRFManager
	sessions  *internalShared.SessionManager
	rbac      rbac.Middleware
	validator *validator.Validate
	metrics   MetricsEnqueuer
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *internalShared.CSRFManager, sessions *internalShared.SessionManager, rbac rbac.Middleware, metrics MetricsEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		sessions:  sessions,
		rbac:      rbac,
		validator: validator.New(),
		metrics:   metrics,
	}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermMasterDataView))
		r.Get("/suppliers", h.List)
		r.Get("/suppliers/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermMasterDataEdit))
		r.Get("/suppliers/new", h.Form)
		r.Post("/suppliers", h.Create)
		r.Get("/suppliers/{id}/edit", h.EditForm)
		r.Post("/suppliers/{id}/edit", h.Update)
		r.Post("/suppliers/{id}/deactivate", h.Deactivate)
		r.Post("/suppliers/{id}/activate", h.Activate)
		r.Post("/suppliers/{id}/metrics/refresh", h.RefreshMetrics)
	})
}

type supplierForm struct {
	Code            string `validate:"required,max=32"`
	Name            string `validate:"required,max=200"`
	ContactName     string `validate:"max=200"`
	Email           string `validate:"omitempty,email"`
	Phone           string `validate:"max=50"`
	DefaultCurrency string `validate:"omitempty,len=3"`
	LeadTimeDays    int    `validate:"gte=0,lte=365"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list suppliers failed", "error", err)
		http.Error(w, "Failed to load suppliers", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/masterdata/suppliers_list.html", map[string]any{
		"Suppliers": list,
		"Filters":   filters,
		"Total":     total,
	}, http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	supplier, metric, err := h.service.GetWithMetric(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/masterdata/supplier_detail.html", map[string]any{
		"Supplier": supplier,
		"Metric":   metric,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
		"Errors":   map[string]string{},
		"Supplier": Supplier{IsActive: true, LeadTimeDays: 7},
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	supplier := supplierFromForm(r)
	if errs := h.validateForm(supplier); len(errs) > 0 {
		h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
			"Errors":   errs,
			"Supplier": supplier,
		}, http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(r.Context(), supplier)
	if err != nil {
		h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
			"Errors":   map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Supplier": supplier,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/suppliers/"+strconv.FormatInt(created.ID, 10), "success", "Supplier "+created.Name+" created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
		"Errors":   map[string]string{},
		"Supplier": supplier,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	supplier := supplierFromForm(r)
	supplier.ID = id
	if errs := h.validateForm(supplier); len(errs) > 0 {
		h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
			"Errors":   errs,
			"Supplier": supplier,
		}, http.StatusBadRequest)
		return
	}
	if err := h.service.Update(r.Context(), id, supplier); err != nil {
		h.render(w, r, "pages/masterdata/supplier_form.html", map[string]any{
			"Errors":   map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Supplier": supplier,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/suppliers/"+chi.URLParam(r, "id"), "success", "Supplier updated")
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.redirectWithFlash(w, r, "/masterdata/suppliers", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/suppliers", "success", "Supplier deactivated")
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Activate(r.Context(), id); err != nil {
		h.redirectWithFlash(w, r, "/masterdata/suppliers", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/suppliers", "success", "Supplier activated")
}

// RefreshMetrics queues a background recalculation of the supplier's
// delivery metrics instead of computing them inline.
func (h *Handler) RefreshMetrics(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	detail := "/masterdata/suppliers/" + chi.URLParam(r, "id")
	if h.metrics == nil {
		h.redirectWithFlash(w, r, detail, "error", "Metrics refresh is not available")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.metrics.EnqueueSupplierMetrics(r.Context(), id); err != nil {
		h.logger.Error("enqueue supplier metrics", slog.Any("error", err))
		h.redirectWithFlash(w, r, detail, "error", "Could not queue metrics refresh")
		return
	}
	h.redirectWithFlash(w, r, detail, "success", "Metrics refresh queued")
}

func (h *Handler) validateForm(s Supplier) map[string]string {
	form := supplierForm{
		Code:            s.Code,
		Name:            s.Name,
		ContactName:     s.ContactName,
		Email:           s.Email,
		Phone:           s.Phone,
		DefaultCurrency: s.DefaultCurrency,
		LeadTimeDays:    s.LeadTimeDays,
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	return errs
}

func supplierFromForm(r *http.Request) Supplier {
	leadTime, _ := strconv.Atoi(r.PostFormValue("lead_time_days"))
	return Supplier{
		Code:            r.PostFormValue("code"),
		Name:            r.PostFormValue("name"),
		ContactName:     r.PostFormValue("contact_name"),
		Email:           r.PostFormValue("email"),
		Phone:           r.PostFormValue("phone"),
		Address:         r.PostFormValue("address"),
		City:            r.PostFormValue("city"),
		Country:         r.PostFormValue("country"),
		TaxID:           r.PostFormValue("tax_id"),
		DefaultCurrency: r.PostFormValue("default_currency"),
		PaymentTerms:    r.PostFormValue("payment_terms"),
		LeadTimeDays:    leadTime,
		IsActive:        r.PostFormValue("is_active") == "on",
		Notes:           r.PostFormValue("notes"),
	}
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
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		filters.IsActive = &active
	case "false":
		active := false
		filters.IsActive = &active
	}
	return filters
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := internalShared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *internalShared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Suppliers", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
