package repository

import (
	"errors"

	"github.com/Clark-Hu/filmtopia/internal/store"
)

// ErrNotFound is returned when no rating matches a lookup.
var ErrNotFound = errors.New("repository: rating not found")

// Repository groups the table accessors sharing one store.
type Repository struct {
	Ratings *RatingsRepository
}

// New binds the accessors to the store's handle and query builder.
func New(st *store.Store) *Repository {
	return &Repository{
		Ratings: &RatingsRepository{db: st.DB(), sb: st.Builder()},
	}
}
