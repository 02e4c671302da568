package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/deicod/godtl"
	"github.com/deicod/godtl/runtime"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured templates over HTTP for preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			if addr == "" {
				addr = ":8000"
			}
			handler, err := a.previewHandler()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("shutdown failed", "error", err)
				}
			}()

			a.logger.Info("serving templates", "addr", addr, "dirs", a.cfg.TemplateDirs)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8000)")
	return cmd
}

// previewHandler renders the template named by the request path. Every render
// sees csrf_token, so forms using the csrf_token tag post back successfully.
func (a *app) previewHandler() (http.Handler, error) {
	key, err := a.cfg.Serve.csrfKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("failed to generate a csrf key")
		}
	}

	opts := []csrf.Option{
		csrf.Secure(a.cfg.Serve.Secure),
		csrf.Path("/"),
		csrf.FieldName("csrfmiddlewaretoken"),
	}
	if len(a.cfg.Serve.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(a.cfg.Serve.TrustedOrigins))
	}
	protect := csrf.Protect(key, opts...)

	index := a.cfg.Serve.Index
	if index == "" {
		index = "index.html"
	}
	preview := &previewServer{env: a.env, logger: a.logger, index: index}

	mux := http.NewServeMux()
	mux.Handle("/{name...}", protect(preview))
	if a.cfg.Serve.Secure {
		return mux, nil
	}
	// without TLS the origin checks must compare against http
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	}), nil
}

type previewServer struct {
	env    *runtime.Environment
	logger *slog.Logger
	index  string
}

func (s *previewServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || strings.HasSuffix(name, "/") {
		name += s.index
	}

	tmpl, err := s.env.LoadTemplate(name)
	if err != nil {
		if runtime.IsTemplateNotFound(err) {
			http.NotFound(w, r)
			return
		}
		s.fail(w, name, err)
		return
	}

	output, err := tmpl.ExecuteToString(requestContext(r))
	if err != nil {
		s.fail(w, name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, output)
	s.logger.Debug("rendered", "template", name, "method", r.Method)
}

func (s *previewServer) fail(w http.ResponseWriter, name string, err error) {
	s.logger.Error("render failed", "template", name, "error", err)
	source := templateSource(s.env, err, name)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if d, ok := godtl.NewDiagnostic(err, source); ok {
		fmt.Fprint(w, d)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// requestContext exposes the request to templates
func requestContext(r *http.Request) map[string]any {
	query := make(map[string]string, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		query[key] = values[0]
	}
	post := make(map[string]string)
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			for key, values := range r.PostForm {
				post[key] = values[0]
			}
		}
	}

	return map[string]any{
		"csrf_token": csrf.Token(r),
		"request": map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"GET":    query,
			"POST":   post,
		},
	}
}
