package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"workdesk/internal/logging"
	"workdesk/internal/model"
	"workdesk/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var errPageNotFound = fmt.Errorf("%w: page", service.ErrNotFound)

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"markdown": func(content string) template.HTML {
			var buf strings.Builder
			if err := goldmark.Convert([]byte(content), &buf); err != nil {
				return template.HTML("<p>Не удалось отобразить текст</p>")
			}
			return template.HTML(buf.String())
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02.01.2006")
		},
		"statusLabel": func(s model.TaskStatus) string {
			return s.Label()
		},
		"excerpt": func(s string, n int) string {
			runes := []rune(strings.TrimSpace(s))
			if len(runes) <= n {
				return string(runes)
			}
			return string(runes[:n]) + "…"
		},
	}
	return template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
}

// page starts the data map every template receives: the current user
// and the categories for the navigation bar.
func (s *Server) page(r *http.Request, title string) map[string]any {
	data := map[string]any{
		"Title":  title,
		"User":   currentUser(r),
		"Form":   map[string]string{},
		"Errors": map[string]string{},
		"Query":  "",
	}
	categories, err := s.categorySvc.List(r.Context())
	if err != nil {
		logging.Logger.WithError(err).Warn("list categories for navigation")
	}
	data["Categories"] = categories
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Logger.WithError(err).WithField("template", name).Error("render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError maps service errors to a status code and the error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Что-то пошло не так. Попробуйте позже."
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, "Страница не найдена."
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, "Недостаточно прав для этого действия."
	case errors.Is(err, service.ErrInvalidStatus):
		status, message = http.StatusBadRequest, "Неизвестный статус задачи."
	case errors.As(err, &verr):
		status, message = http.StatusBadRequest, verr.Error()
	default:
		logging.Logger.WithError(err).WithField("path", r.URL.Path).Error("request error")
	}

	data := s.page(r, http.StatusText(status))
	data["Status"] = status
	data["Message"] = message
	s.render(w, status, "error.html", data)
}

func fieldErrors(err error) (map[string]string, bool) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}
