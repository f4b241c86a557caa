package errors

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
)

// Handler is the host application's error path. Middlewares hand every
// per-request failure to exactly one Handler call and write nothing else.
type Handler func(w http.ResponseWriter, r *http.Request, err error)

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// PlainHandler writes the error message as text with the mapped status code.
func PlainHandler(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), HTTPStatus(err))
}

// OverlayHandler returns a Handler that logs the error and responds with an
// HTML error page. Not-found errors are logged as warnings.
func OverlayHandler(logger Logger) Handler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := HTTPStatus(err)
		if logger != nil {
			fields := []interface{}{"path", r.URL.Path, "status", status, "type", string(TypeOf(err))}
			if status == http.StatusNotFound {
				logger.Warn(r.Context(), err, "Request failed", fields...)
			} else {
				logger.Error(r.Context(), err, "Request failed", fields...)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(Overlay(err, status)))
	}
}

// Overlay generates the HTML page shown for a failed request.
func Overlay(err error, status int) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>`)
	b.WriteString(fmt.Sprintf("%d %s", status, http.StatusText(status)))
	b.WriteString(`</title>
</head>
<body style="margin:0;background:#1a202c;color:#e2e8f0;font-family:'Monaco','Menlo',monospace;font-size:14px;">
<div style="max-width:1000px;margin:0 auto;padding:20px;">
<h2 style="color:#ff6b6b;">`)
	b.WriteString(html.EscapeString(http.StatusText(status)))
	b.WriteString("</h2>\n")

	var pe *PantryError
	if errors.As(err, &pe) {
		b.WriteString(`<div style="background:#2d3748;padding:15px;border-radius:4px;border-left:4px solid #ff6b6b;">`)
		if pe.Code != "" {
			b.WriteString(fmt.Sprintf(`<div style="color:#a0aec0;">%s</div>`, html.EscapeString(pe.Code)))
		}
		if pe.Ingredient != "" {
			b.WriteString(fmt.Sprintf(`<div>ingredient: <strong>%s</strong></div>`, html.EscapeString(pe.Ingredient)))
		}
		if pe.FilePath != "" {
			b.WriteString(fmt.Sprintf(`<div style="color:#a0aec0;">%s</div>`, html.EscapeString(pe.FilePath)))
		}
		b.WriteString(fmt.Sprintf(`<pre style="white-space:pre-wrap;">%s</pre>`, html.EscapeString(pe.Message)))
		if pe.Cause != nil {
			b.WriteString(fmt.Sprintf(`<pre style="white-space:pre-wrap;color:#feca57;">%s</pre>`, html.EscapeString(pe.Cause.Error())))
		}
		b.WriteString("</div>\n")
	} else {
		b.WriteString(fmt.Sprintf(`<pre style="white-space:pre-wrap;">%s</pre>`, html.EscapeString(err.Error())))
	}

	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}
