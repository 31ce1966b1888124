package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/view"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		sessions:  sessions,
		validator: validator.New(),
	}
}

// MountRoutes registers the login and logout routes. These are not guarded by
// the permission middleware since they must work for anonymous visitors.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.User() != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, map[string]any{"Errors": map[string]string{}, "Email": ""}, http.StatusOK)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		errs := make(map[string]string)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
		h.render(w, r, map[string]any{"Errors": errs, "Email": form.Email}, http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate failed", "error", err)
		}
		h.render(w, r, map[string]any{
			"Errors": map[string]string{"general": "Invalid email or password"},
			"Email":  form.Email,
		}, http.StatusUnauthorized)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("login without session in context")
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, h.sessions.TTL()); err != nil {
		h.logger.Error("register session failed", "error", err, "user_id", user.ID)
	}

	h.logger.Info("user signed in", "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		userID, _ := strconv.ParseInt(sess.User(), 10, 64)
		if err := h.service.RemoveSession(r.Context(), sess.ID, userID); err != nil {
			h.logger.Error("remove session failed", "error", err)
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{Title: "Sign in", CSRFToken: csrfToken, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
