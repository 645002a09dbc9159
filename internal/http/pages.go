package httpserver

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/Clark-Hu/filmtopia/internal/domain"
	"github.com/Clark-Hu/filmtopia/internal/service"
	"github.com/Clark-Hu/filmtopia/internal/session"
)

const maxRequestBody = 1 << 20 // 1 MiB

type sliderField struct {
	Name  string
	Label string
	Value int
}

type submittedView struct {
	Rating     domain.Rating
	BarChart   template.HTML
	RadarChart template.HTML
}

type historyView struct {
	Movies   []string
	Selected *domain.Rating
	Chart    template.HTML
}

type aggregateView struct {
	Rows  []domain.MovieAverage
	Chart template.HTML
}

type pageData struct {
	User      string
	Flashes   []string
	Sliders   []sliderField
	Min       int
	Max       int
	Submitted *submittedView
	History   historyView
	Aggregate aggregateView
}

func newPageData(user string, flashes []string) *pageData {
	sliders := make([]sliderField, 0, len(domain.Criteria))
	for _, c := range domain.Criteria {
		sliders = append(sliders, sliderField{Name: c.Column, Label: c.Label, Value: domain.DefaultScore})
	}
	return &pageData{
		User:    user,
		Flashes: flashes,
		Sliders: sliders,
		Min:     domain.MinScore,
		Max:     domain.MaxScore,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	data := newPageData(sess.User(), s.sessions.Flashes(w, r))
	if !sess.Authenticated() {
		s.views.render(w, r, http.StatusOK, "login", data)
		return
	}
	s.renderApp(w, r, data, r.URL.Query().Get("movie"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}

	name := r.PostForm.Get("username")
	if name != "" {
		if err := s.sessions.Login(w, r, name); err != nil {
			fail(w, r, http.StatusInternalServerError, err)
			return
		}
		s.metrics.logins.Inc()
		hlog.FromRequest(r).Info().Str("user", name).Msg("user logged in")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	params, err := parseRatingForm(r.PostForm)
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}

	sub, ok, err := s.ratings.Submit(r.Context(), sess.User(), params)
	switch {
	case errors.Is(err, service.ErrInvalidScores):
		hlog.FromRequest(r).Warn().Err(err).Msg("rejecting rating")
		http.Error(w, fmt.Sprintf("scores must be between %d and %d", domain.MinScore, domain.MaxScore), http.StatusBadRequest)
		return
	case err != nil:
		fail(w, r, http.StatusInternalServerError, err)
		return
	}

	data := newPageData(sess.User(), nil)
	selected := ""
	if ok {
		s.metrics.submitted.Inc()
		logger := hlog.FromRequest(r)
		data.Submitted = &submittedView{
			Rating:     sub.Rating,
			BarChart:   scoresBarChart(logger, "submitted_bar", sub.Rating.Movie, params.Scores),
			RadarChart: scoresRadarChart(logger, "submitted_radar", sub.Rating.Movie, params.Scores),
		}
		selected = sub.Rating.Movie
	} else {
		s.metrics.ignored.Inc()
		// keep what the user entered
		for i := range data.Sliders {
			data.Sliders[i].Value = domain.Criteria[i].Value(params.Scores)
		}
	}
	s.renderApp(w, r, data, selected)
}

// renderApp loads the personal history and the aggregate view, then renders
// the authenticated page.
func (s *Server) renderApp(w http.ResponseWriter, r *http.Request, data *pageData, selected string) {
	logger := hlog.FromRequest(r)

	history, err := s.ratings.History(r.Context(), data.User, selected)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err)
		return
	}
	data.History = historyView{Movies: history.Movies, Selected: history.Selected}
	if history.Selected != nil {
		data.History.Chart = scoresBarChart(logger, "history_bar", history.Selected.Movie, history.Selected.Scores)
	}

	averages, err := s.ratings.Aggregate(r.Context())
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err)
		return
	}
	data.Aggregate = aggregateView{Rows: averages, Chart: aggregateBarChart(logger, "aggregate_bar", averages)}

	s.views.render(w, r, http.StatusOK, "app", data)
}

// parseRatingForm reads the movie title, the ten criterion scores and the
// comment. A missing score keeps the slider default; a non-integer one is
// an error. Range checks happen in the service.
func parseRatingForm(form url.Values) (service.SubmitParams, error) {
	params := service.SubmitParams{
		Movie:   form.Get("movie"),
		Scores:  domain.UniformScores(domain.DefaultScore),
		Comment: form.Get("comment"),
	}
	for _, c := range domain.Criteria {
		raw := form.Get(c.Column)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return service.SubmitParams{}, fmt.Errorf("%s must be an integer", c.Column)
		}
		c.Set(&params.Scores, v)
	}
	return params, nil
}
