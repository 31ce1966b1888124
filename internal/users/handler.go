package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		sessions:  sessions,
		rbac:      rbac,
		validator: validator.New(),
	}
}

// MountRoutes registers user management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView))
		r.Get("/users", h.List)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersEdit))
		r.Get("/users/new", h.Form)
		r.Post("/users", h.Create)
		r.Get("/users/{id}/edit", h.EditForm)
		r.Post("/users/{id}/edit", h.Update)
		r.Post("/users/{id}/password", h.ChangePassword)
		r.Post("/users/{id}/deactivate", h.Deactivate)
		r.Post("/users/{id}/activate", h.Activate)
	})
}

type userForm struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"required,max=200"`
}

type createUserForm struct {
	userForm
	Password string `validate:"required,min=8"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	const limit = 20
	list, total, err := h.service.List(r.Context(), search, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		http.Error(w, "Failed to load users", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{
		"Users":  list,
		"Search": search,
		"Page":   page,
		"Total":  total,
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{
		"Errors": map[string]string{},
		"User":   nil,
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	input := CreateUserInput{
		Email:    r.PostFormValue("email"),
		FullName: r.PostFormValue("full_name"),
		Password: r.PostFormValue("password"),
	}
	form := createUserForm{
		userForm: userForm{Email: input.Email, FullName: input.FullName},
		Password: input.Password,
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.render(w, r, "pages/users/form.html", map[string]any{
			"Errors": errs,
			"User":   User{Email: input.Email, FullName: input.FullName},
		}, http.StatusBadRequest)
		return
	}
	id, err := h.service.Create(r.Context(), h.currentUser(r), input)
	if err != nil {
		h.render(w, r, "pages/users/form.html", map[string]any{
			"Errors": map[string]string{"general": shared.UserSafeMessage(err)},
			"User":   User{Email: input.Email, FullName: input.FullName},
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/users/"+strconv.FormatInt(id, 10)+"/edit", "success", "User created")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/users/form.html", map[string]any{
		"Errors": map[string]string{},
		"User":   user,
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	user := User{
		ID:       id,
		Email:    r.PostFormValue("email"),
		FullName: r.PostFormValue("full_name"),
	}
	if errs := h.validate(userForm{Email: user.Email, FullName: user.FullName}); len(errs) > 0 {
		h.render(w, r, "pages/users/form.html", map[string]any{
			"Errors": errs,
			"User":   user,
		}, http.StatusBadRequest)
		return
	}
	if err := h.service.Update(r.Context(), h.currentUser(r), user); err != nil {
		h.render(w, r, "pages/users/form.html", map[string]any{
			"Errors": map[string]string{"general": shared.UserSafeMessage(err)},
			"User":   user,
		}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User updated")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	back := "/users/" + chi.URLParam(r, "id") + "/edit"
	if err := h.service.ChangePassword(r.Context(), h.currentUser(r), id, r.PostFormValue("password")); err != nil {
		h.redirectWithFlash(w, r, back, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Password changed")
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Deactivate(r.Context(), h.currentUser(r), id); err != nil {
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User deactivated")
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Activate(r.Context(), h.currentUser(r), id); err != nil {
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User activated")
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	return errs
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
	viewData := view.TemplateData{Title: "Users", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
