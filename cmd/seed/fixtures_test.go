package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/filmtopia/internal/config"
	"github.com/Clark-Hu/filmtopia/internal/repository"
	"github.com/Clark-Hu/filmtopia/internal/service"
	"github.com/Clark-Hu/filmtopia/internal/store"
)

func TestReadFixtures(t *testing.T) {
	file, err := os.Open(filepath.Join("testdata", "ratings.json"))
	require.NoError(t, err)
	defer file.Close()

	entries, err := readFixtures(file)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	require.Equal(t, "bob", entries[0].User)
	require.Equal(t, "great", entries[0].Comment)
}

func TestReadFixturesRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `{`, "parse fixtures"},
		{"missing user", `[{"movie":"Dune","scores":[1,1,1,1,1,1,1,1,1,1]}]`, "user is required"},
		{"short scores", `[{"user":"bob","movie":"Dune","scores":[1,2,3]}]`, "want 10 scores, got 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readFixtures(strings.NewReader(tt.raw))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(ctx, config.DriverSQLite, filepath.Join(t.TempDir(), "ratings.db"), store.Options{
		MaxConns: 4,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate())

	repo := repository.New(st)
	svc := service.NewRatings(repo.Ratings, zerolog.Nop())

	entries, err := readFixtures(strings.NewReader(`[
		{"user":"bob","movie":"Dune","scores":[8,7,9,6,8,7,9,8,7,9],"comment":"great"},
		{"user":"bob","movie":"","scores":[5,5,5,5,5,5,5,5,5,5]},
		{"user":"alice","movie":"Dune","scores":[7,7,7,7,7,7,7,7,7,7]}
	]`))
	require.NoError(t, err)

	stored, err := loadFixtures(ctx, svc, entries, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 2, stored)

	averages, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	require.Len(t, averages, 1)
	require.Equal(t, "Dune", averages[0].Movie)
	require.Equal(t, 7.4, averages[0].Average)

	_, err = loadFixtures(ctx, svc, []ratingEntry{{User: "bob", Movie: "Dune", Scores: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}}}, zerolog.Nop())
	require.ErrorIs(t, err, service.ErrInvalidScores)
}

func TestRunSeedsConfiguredStore(t *testing.T) {
	cfg := config.Config{
		DBDriver:          config.DriverSQLite,
		DBPath:            filepath.Join(t.TempDir(), "ratings.db"),
		DBMaxConns:        4,
		DBConnTimeoutSecs: 5,
	}

	stored, err := run(context.Background(), cfg, filepath.Join("testdata", "ratings.json"), zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 4, stored)

	_, err = run(context.Background(), cfg, filepath.Join("testdata", "missing.json"), zerolog.Nop())
	require.ErrorContains(t, err, "open fixtures")
}
