package httpserver

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oxtoacart/bpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

//go:embed templates
var templateFS embed.FS

type views struct {
	pages   *template.Template
	bufpool *bpool.BufferPool
	policy  *bluemonday.Policy
}

func newViews() (*views, error) {
	v := &views{
		bufpool: bpool.NewBufferPool(48),
		policy:  bluemonday.UGCPolicy(),
	}
	pages, err := template.New("").
		Funcs(template.FuncMap{
			"markdown": v.markdown,
			"score":    formatScore,
		}).
		ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	v.pages = pages
	return v, nil
}

// markdown renders a free-text comment as sanitised HTML.
func (v *views) markdown(s string) template.HTML {
	unsafe := markdown.ToHTML([]byte(s), nil, nil)
	return template.HTML(v.policy.SanitizeBytes(unsafe))
}

// formatScore prints a rounded score the way it is stored, keeping at least
// one decimal: 8 becomes "8.0", 7.8 stays "7.8".
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// render executes tmplname into a pooled buffer first so a template error
// never leaves a half-written page.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, tmplname string, data interface{}) {
	sublog := hlog.FromRequest(r)

	buf := v.bufpool.Get()
	defer v.bufpool.Put(buf)

	if err := v.pages.ExecuteTemplate(buf, tmplname, data); err != nil {
		sublog.Error().Err(err).Str("template", tmplname).Msg("failed to execute template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		sublog.Debug().Err(err).Msg("write response")
	}
}

// fail logs err against the request and answers with a plain error page.
func fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	var ev *zerolog.Event
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	} else {
		ev = hlog.FromRequest(r).Warn()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	http.Error(w, http.StatusText(status), status)
}
