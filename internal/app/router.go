package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian/internal/auth"
	"github.com/meridian-erp/meridian/internal/masterdata/categories"
	"github.com/meridian-erp/meridian/internal/masterdata/products"
	"github.com/meridian-erp/meridian/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian/internal/masterdata/units"
	"github.com/meridian-erp/meridian/internal/purchasing"
	"github.com/meridian-erp/meridian/internal/roles"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/users"
	"github.com/meridian-erp/meridian/internal/view"
	"github.com/meridian-erp/meridian/jobs"
	"github.com/meridian-erp/meridian/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	PurchasingHandler *purchasing.Handler
	UnitsHandler      *units.Handler
	CategoriesHandler *categories.Handler
	SuppliersHandler  *suppliers.Handler
	ProductsHandler   *products.Handler
	UsersHandler      *users.Handler
	RolesHandler      *roles.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		data := view.TemplateData{
			Title:       "Dashboard",
			CSRFToken:   csrfToken,
			Flash:       sess.PopFlash(),
			CurrentPath: r.URL.Path,
			Data:        map[string]any{"AppEnv": params.Config.AppEnv},
		}
		if err := params.Templates.Render(w, "pages/dashboard.html", data); err != nil {
			params.Logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	params.AuthHandler.MountRoutes(r)
	r.Route("/purchasing", params.PurchasingHandler.MountRoutes)
	r.Route("/masterdata", func(r chi.Router) {
		params.UnitsHandler.MountRoutes(r)
		params.CategoriesHandler.MountRoutes(r)
		params.SuppliersHandler.MountRoutes(r)
		params.ProductsHandler.MountRoutes(r)
	})
	params.UsersHandler.MountRoutes(r)
	params.RolesHandler.MountRoutes(r)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
