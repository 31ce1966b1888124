package categories

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermMasterDataView))
		r.Get("/categories", h.Tree)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermMasterDataEdit))
		r.Get("/categories/new", h.Form)
		r.Post("/categories", h.Create)
		r.Get("/categories/{id}/edit", h.EditForm)
		r.Post("/categories/{id}/edit", h.Update)
		r.Post("/categories/{id}/delete", h.Delete)
	})
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context())
	if err != nil {
		h.logger.Error("load category tree failed", "error", err)
		http.Error(w, "Failed to load categories", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/masterdata/categories_tree.html", map[string]any{
		"Tree": tree,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, Category{IsActive: true}, map[string]string{}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	category := categoryFromForm(r)
	created, err := h.service.Create(r.Context(), category)
	if err != nil {
		h.renderForm(w, r, category, map[string]string{"general": internalShared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/categories", "success", "Category "+created.Name+" created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	category, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.renderForm(w, r, category, map[string]string{}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	category := categoryFromForm(r)
	if err := h.service.Update(r.Context(), id, category); err != nil {
		category.ID = id
		h.renderForm(w, r, category, map[string]string{"general": internalShared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/categories", "success", "Category updated")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete category failed", "error", err, "id", id)
		h.redirectWithFlash(w, r, "/masterdata/categories", "error", internalShared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/masterdata/categories", "success", "Category deleted")
}

func categoryFromForm(r *http.Request) Category {
	category := Category{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		IsActive:    r.PostFormValue("is_active") == "on",
	}
	if parentID, err := strconv.ParseInt(r.PostFormValue("parent_id"), 10, 64); err == nil && parentID > 0 {
		category.ParentID = &parentID
	}
	return category
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, category Category, errs map[string]string, status int) {
	parents, err := h.service.Tree(r.Context())
	if err != nil {
		h.logger.Error("load category tree failed", "error", err)
		parents = nil
	}
	h.render(w, r, "pages/masterdata/category_form.html", map[string]any{
		"Category": category,
		"Parents":  parents,
		"Errors":   errs,
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := internalShared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *internalShared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Categories", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
