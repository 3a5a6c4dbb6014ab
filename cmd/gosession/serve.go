package main

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/gate"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newServeCmd(h *host) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local booking-site shell guarded by the auth gate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = h.cfg.Server.Addr
			}
			store, closeFn, err := h.openStore(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newSiteHandler(store, h.cfg.Routes, h.logger),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return runServer(cmd.Context(), srv, h.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServer(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<title>Sign in</title>
<form method="post" action="{{.Action}}">
<input name="email" placeholder="email">
<input name="name" placeholder="name">
<button>Sign in</button>
</form>
`))

var adminPage = template.Must(template.New("admin").Parse(`<!doctype html>
<title>Bookings</title>
{{if .User}}<p>Signed in as {{index .User "email"}}{{with index .User "name"}} ({{.}}){{end}}</p>
{{else}}<p>Session restored. Sign in again to load your profile.</p>
{{end}}<form method="post" action="/logout"><button>Sign out</button></form>
`))

// newSiteHandler wires the entry gate, the login and logout handlers, the
// protected landing route, profile edits and the metrics endpoint.
func newSiteHandler(store *goSession.Store, routes gate.Routes, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	protect := middleware.RequireSession(store, routes)

	mux.Handle("GET /{$}", middleware.Gate(store, routes,
		gate.WithMetrics(store.Metrics()),
		gate.WithLogger(logger),
	))

	mux.HandleFunc("GET "+string(routes.Login), func(w http.ResponseWriter, _ *http.Request) {
		_ = loginPage.Execute(w, map[string]string{"Action": string(routes.Login)})
	})

	mux.HandleFunc("POST "+string(routes.Login), func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.PostFormValue("email"))
		if email == "" {
			http.Error(w, "email is required", http.StatusBadRequest)
			return
		}
		user := goSession.User{"id": uuid.NewString(), "email": email}
		if name := strings.TrimSpace(r.PostFormValue("name")); name != "" {
			user["name"] = name
		}
		store.Login(user, uuid.NewString())
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		store.Logout()
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.Handle("GET "+string(routes.Authenticated), protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := goSession.StoreFromContext(r.Context())
		_ = adminPage.Execute(w, map[string]any{"User": s.User()})
	})))

	mux.Handle("POST /profile", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := goSession.StoreFromContext(r.Context())
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		partial := goSession.User{}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				partial[k] = v[0]
			}
		}
		if !s.UpdateUser(partial) {
			http.Error(w, "no user loaded in this session", http.StatusConflict)
			return
		}
		http.Redirect(w, r, string(routes.Authenticated), http.StatusSeeOther)
	})))

	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(store).Handler())

	return mux
}
