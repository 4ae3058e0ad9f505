package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// HealthFunc reports whether the service can reach its storage.
type HealthFunc func(ctx context.Context) error

type RouterConfig struct {
	Events    *EventHandler
	Calendar  *CalendarHandler
	Directory *DirectoryHandler
	Health    HealthFunc
	Logger    *slog.Logger
	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	school := RequireSchool(cfg.Logger)
	scoped := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, school(fn))
	}

	if cfg.Events != nil {
		scoped("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		scoped("/events/check", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Events.Check(w, r)
		})
		scoped("/events/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/events/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Events.Get(w, r)
			case http.MethodPut, http.MethodPatch:
				cfg.Events.Update(w, r)
			case http.MethodDelete:
				cfg.Events.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
			}
		})
	}

	if cfg.Calendar != nil {
		scoped("/calendar", getOnly(cfg.Calendar.View))
		scoped("/calendar/series", getOnly(cfg.Calendar.Series))
		scoped("/calendar.ics", getOnly(cfg.Calendar.Feed))
	}

	if cfg.Directory != nil {
		mux.HandleFunc("/schools", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Directory.CreateSchool(w, r)
		})
		mux.HandleFunc("/schools/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/schools/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Directory.GetSchool(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		})
		scoped("/classes", listOrCreate(cfg.Directory.ListClasses, cfg.Directory.CreateClass))
		scoped("/subjects", listOrCreate(cfg.Directory.ListSubjects, cfg.Directory.CreateSubject))
		scoped("/teachers", listOrCreate(cfg.Directory.ListTeachers, cfg.Directory.CreateTeacher))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		responder := newResponder(cfg.Logger)
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func getOnly(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		fn(w, r)
	}
}

func listOrCreate(list, create http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodPost:
			create(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
