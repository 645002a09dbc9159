package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/filmtopia/internal/config"
	"github.com/Clark-Hu/filmtopia/internal/domain"
	"github.com/Clark-Hu/filmtopia/internal/repository"
	"github.com/Clark-Hu/filmtopia/internal/service"
	"github.com/Clark-Hu/filmtopia/internal/session"
	"github.com/Clark-Hu/filmtopia/internal/store"
)

type testApp struct {
	srv  *Server
	repo *repository.Repository
	http *httptest.Server
}

func buildTestServer(tb testing.TB) *testApp {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}

	st, err := store.New(context.Background(), config.DriverSQLite, filepath.Join(tb.TempDir(), "ratings.db"), store.Options{
		MaxConns: 8,
		Logger:   zerolog.Nop(),
	})
	require.NoError(tb, err)
	tb.Cleanup(st.Close)
	require.NoError(tb, st.Migrate())

	repo := repository.New(st)
	ratings := service.NewRatings(repo.Ratings, zerolog.Nop())
	sessions, err := session.NewManager(session.Options{Name: "filmtopia"}, zerolog.Nop())
	require.NoError(tb, err)

	srv, err := New(cfg, st, ratings, sessions, zerolog.Nop())
	require.NoError(tb, err)

	ts := httptest.NewServer(srv.Handler())
	tb.Cleanup(ts.Close)
	return &testApp{srv: srv, repo: repo, http: ts}
}

// client is a browser-like user agent with its own cookie jar.
type client struct {
	tb   testing.TB
	app  *testApp
	http *http.Client
}

func (a *testApp) newClient(tb testing.TB) *client {
	tb.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(tb, err)
	return &client{tb: tb, app: a, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, form url.Values) (int, string) {
	c.tb.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, c.app.http.URL+path, body)
	require.NoError(c.tb, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.tb, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(c.tb, err)
	return resp.StatusCode, string(payload)
}

func mustParseURL(tb testing.TB, raw string) *url.URL {
	tb.Helper()
	u, err := url.Parse(raw)
	require.NoError(tb, err)
	return u
}

func (c *client) get(path string) (int, string) {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) login(name string) string {
	c.tb.Helper()
	code, body := c.do(http.MethodPost, "/login", url.Values{"username": {name}})
	require.Equal(c.tb, http.StatusOK, code)
	return body
}

func ratingForm(movie string, scores []int, comment string) url.Values {
	form := url.Values{"movie": {movie}, "comment": {comment}}
	for i, c := range domain.Criteria {
		form.Set(c.Column, fmt.Sprint(scores[i]))
	}
	return form
}

func uniform(v int) []int {
	s := make([]int, len(domain.Criteria))
	for i := range s {
		s[i] = v
	}
	return s
}

func (c *client) submit(movie string, scores []int, comment string) (int, string) {
	c.tb.Helper()
	return c.do(http.MethodPost, "/ratings", ratingForm(movie, scores, comment))
}

func (a *testApp) count(tb testing.TB) int64 {
	tb.Helper()
	n, err := a.repo.Ratings.Count(context.Background())
	require.NoError(tb, err)
	return n
}

func TestIndexUnauthenticatedShowsLoginOnly(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)

	code, body := c.get("/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Please log in")
	require.Contains(t, body, `name="username"`)
	require.NotContains(t, body, `name="movie"`)
	require.NotContains(t, body, `id="aggregate"`)
}

func TestLoginEmptyUsernameIsNoop(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)

	body := c.login("")
	require.Contains(t, body, "Please log in")
}

func TestLoginShowsWelcomeOnce(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)

	body := c.login("alice")
	require.Contains(t, body, "Welcome to Filmtopia, alice!")
	require.Contains(t, body, "Logged in as <strong>alice</strong>")
	require.Contains(t, body, "No ratings yet.")
	require.Equal(t, 10, strings.Count(body, `type="range"`))
	require.Equal(t, 10, strings.Count(body, `step="1" value="5"`))

	_, body = c.get("/")
	require.NotContains(t, body, "Welcome to Filmtopia")
	require.Contains(t, body, "Logged in as <strong>alice</strong>")
}

func TestSubmitUnauthenticatedWritesNothing(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)

	code, body := c.submit("Dune", uniform(8), "sneaky")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Please log in")
	require.Zero(t, app.count(t))
}

func TestEndToEndBobRatesDune(t *testing.T) {
	app := buildTestServer(t)
	bob := app.newClient(t)
	bob.login("bob")

	code, body := bob.submit("Dune", []int{8, 7, 9, 6, 8, 7, 9, 8, 7, 9}, "great")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Rating for Dune submitted!")
	require.Contains(t, body, "Final Score: 7.8 / 10")
	require.Contains(t, body, `id="submitted_bar"`)
	require.Contains(t, body, `id="submitted_radar"`)
	require.EqualValues(t, 1, app.count(t))

	ratings, err := app.repo.Ratings.ListByUser(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	require.Equal(t, 7.8, ratings[0].Average)

	_, body = bob.get("/?movie=Dune")
	require.Contains(t, body, `<option value="Dune" selected>Dune</option>`)
	require.Contains(t, body, `<span class="average">7.8</span>`)
	require.Contains(t, body, "<p>great</p>")
	require.Contains(t, body, `id="history_bar"`)
	require.Contains(t, body, "<tr><td>Dune</td><td>7.8</td></tr>")
	require.Contains(t, body, `id="aggregate_bar"`)
}

func TestSubmitEmptyMovieIsIgnored(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)
	c.login("bob")

	for _, scores := range [][]int{uniform(1), uniform(10), {3, 4, 5, 6, 7, 8, 9, 10, 1, 2}} {
		code, body := c.submit("", scores, "no title")
		require.Equal(t, http.StatusOK, code)
		require.NotContains(t, body, "Final Score")
	}
	require.Zero(t, app.count(t))
}

func TestSubmitOutOfRangeScores(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)
	c.login("bob")

	scores := uniform(5)
	scores[2] = 11
	code, _ := c.submit("Dune", scores, "")
	require.Equal(t, http.StatusBadRequest, code)

	form := ratingForm("Dune", uniform(5), "")
	form.Set("acting", "lots")
	code, _ = c.do(http.MethodPost, "/ratings", form)
	require.Equal(t, http.StatusBadRequest, code)

	require.Zero(t, app.count(t))
}

func TestHistoryShowsLatestComment(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)
	c.login("carol")

	for i, comment := range []string{"meh", "better", "loved it"} {
		code, _ := c.submit("Heat", uniform(i+5), comment)
		require.Equal(t, http.StatusOK, code)
	}

	_, body := c.get("/?movie=Heat")
	require.Contains(t, body, "<p>loved it</p>")
	require.NotContains(t, body, "<p>meh</p>")
	require.Contains(t, body, `<span class="average">7.0</span>`)
}

func TestHistorySelectorOnlyListsOwnMovies(t *testing.T) {
	app := buildTestServer(t)
	alice := app.newClient(t)
	bob := app.newClient(t)
	alice.login("alice")
	bob.login("bob")

	alice.submit("Alien", uniform(9), "")
	alice.submit("Brazil", uniform(7), "")
	bob.submit("Casablanca", uniform(6), "")

	_, body := alice.get("/")
	require.Contains(t, body, `<option value="Alien" selected>Alien</option>`)
	require.Contains(t, body, `<option value="Brazil">Brazil</option>`)
	require.NotContains(t, body, `<option value="Casablanca"`)
	// the aggregate view still covers everyone
	require.Contains(t, body, "<tr><td>Casablanca</td><td>6.0</td></tr>")

	_, body = bob.get("/?movie=Alien")
	require.Contains(t, body, `<option value="Casablanca" selected>Casablanca</option>`)
	require.NotContains(t, body, `<option value="Alien"`)
}

func TestNoHistoryForNewUser(t *testing.T) {
	app := buildTestServer(t)
	alice := app.newClient(t)
	alice.login("alice")
	alice.submit("Alien", uniform(9), "")

	dave := app.newClient(t)
	body := dave.login("dave")
	require.NotContains(t, body, `id="history"`)
	require.Contains(t, body, "<tr><td>Alien</td><td>9.0</td></tr>")
}

func TestAggregateMeanOfMeans(t *testing.T) {
	app := buildTestServer(t)
	alice := app.newClient(t)
	bob := app.newClient(t)
	alice.login("alice")
	bob.login("bob")

	alice.submit("Dune", uniform(7), "")
	bob.submit("Dune", uniform(9), "")
	alice.submit("Heat", []int{1, 10, 1, 10, 1, 10, 1, 10, 1, 10}, "")

	_, body := alice.get("/")
	require.Contains(t, body, "<tr><td>Dune</td><td>8.0</td></tr>")
	require.Contains(t, body, "<tr><td>Heat</td><td>5.5</td></tr>")
	require.Less(t, strings.Index(body, "<td>Dune</td>"), strings.Index(body, "<td>Heat</td>"))
}

func TestMarkdownCommentIsSanitised(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)
	c.login("eve")

	c.submit("Dune", uniform(6), "**bold** <script>alert('x')</script>")

	_, body := c.get("/?movie=Dune")
	require.Contains(t, body, "<strong>bold</strong>")
	require.NotContains(t, body, "alert(")

	ratings, err := app.repo.Ratings.ListByUser(context.Background(), "eve")
	require.NoError(t, err)
	require.Equal(t, "**bold** <script>alert('x')</script>", ratings[0].Comment)
}

func TestConcurrentSubmissionsFromTwoUsers(t *testing.T) {
	app := buildTestServer(t)
	alice := app.newClient(t)
	bob := app.newClient(t)
	alice.login("alice")
	bob.login("bob")

	var wg sync.WaitGroup
	for _, u := range []struct {
		c     *client
		movie string
	}{{alice, "Alien"}, {bob, "Dune"}} {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			form := ratingForm(u.movie, uniform(7), "")
			req, err := http.NewRequest(http.MethodPost, app.http.URL+"/ratings", strings.NewReader(form.Encode()))
			if err != nil {
				t.Error(err)
				return
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			resp, err := u.c.http.Do(req)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("submit %s: status %d", u.movie, resp.StatusCode)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 2, app.count(t))
}

func TestHealthz(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)

	code, body := c.get("/healthz")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestHealthzWithoutStore(t *testing.T) {
	sessions, err := session.NewManager(session.Options{Name: "filmtopia"}, zerolog.Nop())
	require.NoError(t, err)
	srv, err := New(config.Config{}, nil, nil, sessions, zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsCountLoginsAndSubmissions(t *testing.T) {
	app := buildTestServer(t)
	c := app.newClient(t)
	c.login("bob")
	c.submit("Dune", uniform(8), "")
	c.submit("", uniform(8), "")

	code, body := c.get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "filmtopia_logins_total 1")
	require.Contains(t, body, "filmtopia_ratings_submitted_total 1")
	require.Contains(t, body, "filmtopia_ratings_ignored_total 1")
	require.Contains(t, body, `filmtopia_http_request_duration_seconds_count{route="/ratings",status="200"} 2`)
	require.Contains(t, body, "go_sql_open_connections")
}

func TestParseRatingForm(t *testing.T) {
	form := ratingForm("  Dune  ", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "ok")
	params, err := parseRatingForm(form)
	require.NoError(t, err)
	require.Equal(t, "  Dune  ", params.Movie)
	require.Equal(t, "ok", params.Comment)
	require.Equal(t, domain.ScoresFromSlice([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}), params.Scores)

	params, err = parseRatingForm(url.Values{"movie": {"Heat"}})
	require.NoError(t, err)
	require.Equal(t, domain.UniformScores(domain.DefaultScore), params.Scores)

	_, err = parseRatingForm(url.Values{"plot": {"7.5"}})
	require.ErrorContains(t, err, "plot must be an integer")
}

func TestFormatScore(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{7.8, "7.8"},
		{8, "8.0"},
		{5.55, "5.55"},
		{10, "10.0"},
		{1, "1.0"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatScore(tt.value))
	}
}
