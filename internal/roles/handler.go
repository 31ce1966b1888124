package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian/internal/rbac"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/view"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, rbac: rbac}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView))
		r.Get("/roles", h.List)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Get("/roles/new", h.Form)
		r.Post("/roles", h.Create)
		r.Get("/roles/{id}/edit", h.EditForm)
		r.Post("/roles/{id}/edit", h.Update)
		r.Post("/roles/{id}/delete", h.Delete)
		r.Post("/users/{id}/roles", h.Assign)
		r.Post("/users/{id}/roles/{roleID}/remove", h.Remove)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", "error", err)
		http.Error(w, "Failed to load roles", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/list.html", map[string]any{
		"Roles": list,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.Permissions(r.Context())
	if err != nil {
		h.logger.Error("load permissions failed", "error", err)
		http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Errors":      map[string]string{},
		"Role":        nil,
		"Permissions": perms,
		"Assigned":    map[int64]bool{},
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	role := roleFromForm(r)
	permIDs := permissionIDsFromForm(r)
	if _, err := h.service.Create(r.Context(), h.currentUser(r), role, permIDs); err != nil {
		h.renderFormError(w, r, role, permIDs, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role "+role.Name+" created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	role, assigned, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	perms, err := h.service.Permissions(r.Context())
	if err != nil {
		h.logger.Error("load permissions failed", "error", err)
		http.Error(w, "Failed to load permissions", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Errors":      map[string]string{},
		"Role":        role,
		"Permissions": perms,
		"Assigned":    assignedSet(assigned),
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	role := roleFromForm(r)
	role.ID = id
	permIDs := permissionIDsFromForm(r)
	if err := h.service.Update(r.Context(), h.currentUser(r), role, permIDs); err != nil {
		h.renderFormError(w, r, role, permIDs, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role updated")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), h.currentUser(r), id); err != nil {
		h.logger.Error("delete role failed", "error", err, "id", id)
		h.redirectWithFlash(w, r, "/roles", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role deleted")
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	roleID, _ := strconv.ParseInt(r.PostFormValue("role_id"), 10, 64)
	back := "/users/" + strconv.FormatInt(userID, 10) + "/edit"
	if err := h.service.Assign(r.Context(), h.currentUser(r), userID, roleID); err != nil {
		h.redirectWithFlash(w, r, back, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Role assigned")
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	roleID, _ := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	back := "/users/" + strconv.FormatInt(userID, 10) + "/edit"
	if err := h.service.Remove(r.Context(), h.currentUser(r), userID, roleID); err != nil {
		h.redirectWithFlash(w, r, back, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Role removed")
}

func (h *Handler) renderFormError(w http.ResponseWriter, r *http.Request, role Role, permIDs []int64, err error) {
	perms, permErr := h.service.Permissions(r.Context())
	if permErr != nil {
		h.logger.Error("load permissions failed", "error", permErr)
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Errors":      map[string]string{"general": shared.UserSafeMessage(err)},
		"Role":        role,
		"Permissions": perms,
		"Assigned":    assignedSet(permIDs),
	}, http.StatusBadRequest)
}

func roleFromForm(r *http.Request) Role {
	return Role{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	}
}

func permissionIDsFromForm(r *http.Request) []int64 {
	var ids []int64
	for _, raw := range r.PostForm["permission_ids"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func assignedSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (h *Handler) currentUser(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Roles", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
