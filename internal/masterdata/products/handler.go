package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
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

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermMasterDataView, internalShared.PermPurchasingView))
		r.Get("/products/search", h.Search)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermMasterDataView))
		r.Get("/products", h.List)
		r.Get("/products/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermMasterDataEdit))
		r.Get("/products/new", h.Form)
		r.Post("/products", h.Create)
		r.Get("/products/{id}/edit", h.EditForm)
		r.Post("/products/{id}/edit", h.Update)
		r.Post("/products/{id}/deactivate", h.Deactivate)
		r.Post("/products/{id}/activate", h.Activate)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products failed", "error", err)
		http.Error(w, "Failed to load products", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/masterdata/products_list.html", map[string]any{
		"Products": list,
		"Filters":  filters,
		"Total":    total,
	}, http.StatusOK)
}

// Search is the JSON autocomplete endpoint used by the purchase order form.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.service.SearchActive(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("product search failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Search failed", "")
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	history, err := h.service.PriceHistory(r.Context(), id)
	if err != nil {
		h.logger.Error("load price history failed", "error", err, "id", id)
	}
	h.render(w, r, "pages/masterdata/product_detail.html", map[string]any{
		"Product":      product,
		"PriceHistory": history,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/masterdata/product_form.html", map[string]any{
		"Errors":  map[string]string{},
		"Product": Product{IsActive: true},
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	product := productFromForm(r)
	created, err := h.service.Create(r.Context(), product)
	if err != nil {
		h.render(w, r, "pages/masterdata/product_form.html", map[string]any{
			"Errors":  map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Product": product,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/products/"+strconv.FormatInt(created.ID, 10), "success", "Product "+created.SKU+" created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/masterdata/product_form.html", map[string]any{
		"Errors":  map[string]string{},
		"Product": product,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	product := productFromForm(r)
	product.ID = id
	if err := h.service.Update(r.Context(), id, product, currentUser(r)); err != nil {
		h.render(w, r, "pages/masterdata/product_form.html", map[string]any{
			"Errors":  map[string]string{"general": internalShared.UserSafeMessage(err)},
			"Product": product,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/products/"+chi.URLParam(r, "id"), "success", "Product updated")
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.redirectWithFlash(w, r, "/masterdata/products", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/products", "success", "Product deactivated")
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Activate(r.Context(), id); err != nil {
		h.redirectWithFlash(w, r, "/masterdata/products", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/products", "success", "Product activated")
}

func productFromForm(r *http.Request) Product {
	price, _ := decimal.NewFromString(r.PostFormValue("price"))
	cost, _ := decimal.NewFromString(r.PostFormValue("cost"))
	unitID, _ := strconv.ParseInt(r.PostFormValue("unit_id"), 10, 64)
	product := Product{
		SKU:         r.PostFormValue("sku"),
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		UnitID:      unitID,
		Price:       price,
		Cost:        cost,
		IsActive:    r.PostFormValue("is_active") == "on",
	}
	if categoryID, err := strconv.ParseInt(r.PostFormValue("category_id"), 10, 64); err == nil && categoryID > 0 {
		product.CategoryID = &categoryID
	}
	return product
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
	if categoryID, err := strconv.ParseInt(r.URL.Query().Get("category_id"), 10, 64); err == nil && categoryID > 0 {
		filters.CategoryID = &categoryID
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

func currentUser(r *http.Request) int64 {
	sess := internalShared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := internalShared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *internalShared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Products", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
