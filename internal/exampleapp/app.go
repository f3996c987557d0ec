// Package exampleapp is a small application used to exercise the checker:
// plain responses, error statuses, redirect chains, a redirect loop, a route
// that panics and routes that check other paths from inside a request.
package exampleapp

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/urlcheck/internal/checker"
)

//go:embed files
var files embed.FS

// ErrUnhandled is the value the /http500 route panics with.
var ErrUnhandled = errors.New("exampleapp: unhandled server error")

// Checker is the part of the local checker the self-checking routes use.
type Checker interface {
	Check(ctx context.Context, path string, opts ...checker.Option) bool
}

// App serves the example routes.
type App struct {
	router  chi.Router
	checker atomic.Pointer[Checker]
}

// New creates the app. The self-checking routes answer "False" until
// SetChecker has been called.
func New() *App {
	a := &App{}

	r := chi.NewRouter()
	r.Get("/response", a.handleResponse)
	r.Get("/notfound", http.NotFound)
	r.Get("/error", a.handleError)
	r.Get("/http404", a.handleHTTP404)
	r.Get("/http500", a.handleHTTP500)
	r.Get("/redirect_response", redirectTo("/response", http.StatusFound))
	r.Get("/redirect_notfound", redirectTo("/notfound", http.StatusFound))
	r.Get("/redirect_redirect_response", redirectTo("/redirect_response", http.StatusFound))
	r.Get("/redirect_cicle", redirectTo("/redirect_cicle", http.StatusFound))
	r.Get("/permanent_redirect_response", redirectTo("/response", http.StatusMovedPermanently))
	r.Get("/request_true_response", a.selfCheck("/response"))
	r.Get("/request_false_response", a.selfCheck("/notfound"))
	a.router = r

	return a
}

// SetChecker binds the checker used by the self-checking routes. The app is
// built before the checker that dispatches to it, so binding happens late.
func (a *App) SetChecker(c Checker) {
	a.checker.Store(&c)
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// MediaFS returns the bundled media files.
func MediaFS() fs.FS {
	return sub("files/media")
}

// StaticFS returns the bundled static files.
func StaticFS() fs.FS {
	return sub("files/static")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return f
}

func (a *App) handleResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("response"))
}

func (a *App) handleError(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("error"))
}

func (a *App) handleHTTP404(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not found", http.StatusNotFound)
}

func (a *App) handleHTTP500(w http.ResponseWriter, r *http.Request) {
	panic(ErrUnhandled)
}

func redirectTo(target string, code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, code)
	}
}

// selfCheck answers "True" or "False" depending on whether path is
// reachable, checking it while this request is still being served.
func (a *App) selfCheck(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok := false
		if c := a.checker.Load(); c != nil {
			ok = (*c).Check(r.Context(), path)
		}
		body := "False"
		if ok {
			body = "True"
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(body))
	}
}
