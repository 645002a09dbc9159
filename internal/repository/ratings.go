package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/Clark-Hu/filmtopia/internal/domain"
)

// "user" is reserved in postgres, so it is always quoted.
const userColumn = `"user"`

var ratingColumns = []string{
	"id", userColumn, "movie",
	"plot", "acting", "direction", "screenplay", "sound",
	"cinematography", "editing", "design", "emotion", "entertainment",
	"average", "comment", "created_at",
}

// RatingsRepository provides append-only persistence for ratings.
type RatingsRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// RatingInsertParams captures the payload required to append a rating.
type RatingInsertParams struct {
	User    string
	Movie   string
	Scores  domain.Scores
	Average float64
	Comment string
}

// Insert appends one row and returns it as stored, with id and created_at
// assigned by the database.
func (r *RatingsRepository) Insert(ctx context.Context, params RatingInsertParams) (domain.Rating, error) {
	values := sq.Eq{
		userColumn: params.User,
		"movie":    params.Movie,
		"average":  params.Average,
		"comment":  params.Comment,
	}
	for _, c := range domain.Criteria {
		values[c.Column] = c.Value(params.Scores)
	}

	query, args, err := r.sb.Insert("ratings").SetMap(values).Suffix("RETURNING id").ToSql()
	if err != nil {
		return domain.Rating{}, fmt.Errorf("build insert rating: %w", err)
	}

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return domain.Rating{}, fmt.Errorf("insert rating: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID loads a single rating.
func (r *RatingsRepository) GetByID(ctx context.Context, id int64) (domain.Rating, error) {
	query, args, err := r.sb.Select(ratingColumns...).From("ratings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Rating{}, fmt.Errorf("build get rating: %w", err)
	}

	var rating domain.Rating
	if err := r.db.GetContext(ctx, &rating, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("get rating %d: %w", id, err)
	}
	return rating, nil
}

// ListByUser returns every rating by user, oldest first.
func (r *RatingsRepository) ListByUser(ctx context.Context, user string) ([]domain.Rating, error) {
	query, args, err := r.sb.Select(ratingColumns...).
		From("ratings").
		Where(sq.Eq{userColumn: user}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list ratings: %w", err)
	}

	ratings := []domain.Rating{}
	if err := r.db.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, fmt.Errorf("list ratings for user: %w", err)
	}
	return ratings, nil
}

// Latest returns the most recently stored rating for (user, movie).
func (r *RatingsRepository) Latest(ctx context.Context, user, movie string) (domain.Rating, error) {
	query, args, err := r.sb.Select(ratingColumns...).
		From("ratings").
		Where(sq.Eq{userColumn: user, "movie": movie}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Rating{}, fmt.Errorf("build latest rating: %w", err)
	}

	var rating domain.Rating
	if err := r.db.GetContext(ctx, &rating, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("latest rating: %w", err)
	}
	return rating, nil
}

// AggregateByMovie returns the mean of stored averages per movie, rounded to
// two decimals. Order is not guaranteed.
func (r *RatingsRepository) AggregateByMovie(ctx context.Context) ([]domain.MovieAverage, error) {
	query, args, err := r.sb.Select("movie", "ROUND(CAST(AVG(average) AS NUMERIC), 2) AS avg_rating").
		From("ratings").
		GroupBy("movie").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build aggregate ratings: %w", err)
	}

	averages := []domain.MovieAverage{}
	if err := r.db.SelectContext(ctx, &averages, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	return averages, nil
}

// Count returns the number of stored ratings.
func (r *RatingsRepository) Count(ctx context.Context) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("ratings").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count ratings: %w", err)
	}

	var n int64
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return n, nil
}
