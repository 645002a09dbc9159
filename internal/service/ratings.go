package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Clark-Hu/filmtopia/internal/domain"
	"github.com/Clark-Hu/filmtopia/internal/repository"
)

// ErrInvalidScores reports a criterion score outside [MinScore, MaxScore].
var ErrInvalidScores = errors.New("invalid scores")

// RatingStore is the persistence the rating flows need.
type RatingStore interface {
	Insert(ctx context.Context, params repository.RatingInsertParams) (domain.Rating, error)
	ListByUser(ctx context.Context, user string) ([]domain.Rating, error)
	Latest(ctx context.Context, user, movie string) (domain.Rating, error)
	AggregateByMovie(ctx context.Context) ([]domain.MovieAverage, error)
}

// SubmitParams is one filled-in rating form.
type SubmitParams struct {
	Movie   string
	Scores  domain.Scores
	Comment string
}

// Submission is the outcome of a stored rating.
type Submission struct {
	Rating domain.Rating
}

// History is a user's personal view: the movies they rated and the latest
// rating of the selected one. Selected is nil when Movies is empty.
type History struct {
	Movies   []string
	Selected *domain.Rating
}

// Ratings implements submission, personal history and the aggregate view.
type Ratings struct {
	store    RatingStore
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewRatings(store RatingStore, logger zerolog.Logger) *Ratings {
	return &Ratings{
		store:    store,
		validate: newValidator(),
		logger:   logger.With().Str("component", "ratings").Logger(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
		return domain.InScoreRange(int(fl.Field().Int()))
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Submit stores one rating for user. An empty movie title is silently
// ignored and reported as ok=false with no error.
func (s *Ratings) Submit(ctx context.Context, user string, params SubmitParams) (Submission, bool, error) {
	if params.Movie == "" {
		s.logger.Debug().Str("user", user).Msg("ignoring submission without movie title")
		return Submission{}, false, nil
	}
	if err := s.validate.Struct(params.Scores); err != nil {
		return Submission{}, false, fmt.Errorf("%w: %w", ErrInvalidScores, err)
	}

	rating, err := s.store.Insert(ctx, repository.RatingInsertParams{
		User:    user,
		Movie:   params.Movie,
		Scores:  params.Scores,
		Average: params.Scores.Average(),
		Comment: params.Comment,
	})
	if err != nil {
		return Submission{}, false, fmt.Errorf("submit rating: %w", err)
	}

	s.logger.Info().
		Int64("id", rating.ID).
		Str("user", user).
		Str("movie", rating.Movie).
		Float64("average", rating.Average).
		Msg("rating stored")
	return Submission{Rating: rating}, true, nil
}

// History lists the movies user rated and loads the latest rating for
// selected. An unknown or empty selection falls back to the first movie.
func (s *Ratings) History(ctx context.Context, user, selected string) (History, error) {
	ratings, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return History{}, fmt.Errorf("load history: %w", err)
	}
	if len(ratings) == 0 {
		return History{Movies: []string{}}, nil
	}

	seen := make(map[string]struct{}, len(ratings))
	movies := make([]string, 0, len(ratings))
	for _, r := range ratings {
		if _, ok := seen[r.Movie]; ok {
			continue
		}
		seen[r.Movie] = struct{}{}
		movies = append(movies, r.Movie)
	}
	sortByTitle(len(movies), func(i int) string { return movies[i] }, func(i, j int) { movies[i], movies[j] = movies[j], movies[i] })

	if _, ok := seen[selected]; !ok {
		selected = movies[0]
	}

	latest, err := s.store.Latest(ctx, user, selected)
	if err != nil {
		return History{}, fmt.Errorf("load latest rating for %q: %w", selected, err)
	}
	return History{Movies: movies, Selected: &latest}, nil
}

// Aggregate returns the per-movie mean of stored averages, ordered by title.
func (s *Ratings) Aggregate(ctx context.Context) ([]domain.MovieAverage, error) {
	averages, err := s.store.AggregateByMovie(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	sortByTitle(len(averages), func(i int) string { return averages[i].Movie }, func(i, j int) { averages[i], averages[j] = averages[j], averages[i] })
	return averages, nil
}

// sortByTitle orders n items by title with an English collator. Titles the
// collator treats as equal fall back to byte order.
func sortByTitle(n int, title func(int) string, swap func(i, j int)) {
	sort.Sort(titleSorter{
		n:     n,
		title: title,
		swap:  swap,
		c:     collate.New(language.English),
	})
}

type titleSorter struct {
	n     int
	title func(int) string
	swap  func(i, j int)
	c     *collate.Collator
}

func (t titleSorter) Len() int      { return t.n }
func (t titleSorter) Swap(i, j int) { t.swap(i, j) }
func (t titleSorter) Less(i, j int) bool {
	a, b := t.title(i), t.title(j)
	if cmp := t.c.CompareString(a, b); cmp != 0 {
		return cmp < 0
	}
	return a < b
}
