package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/filmtopia/internal/domain"
	"github.com/Clark-Hu/filmtopia/internal/service"
)

type ratingEntry struct {
	User    string `json:"user"`
	Movie   string `json:"movie"`
	Scores  []int  `json:"scores"`
	Comment string `json:"comment"`
}

type submitter interface {
	Submit(ctx context.Context, user string, params service.SubmitParams) (service.Submission, bool, error)
}

func readFixtures(r io.Reader) ([]ratingEntry, error) {
	var entries []ratingEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, e := range entries {
		if e.User == "" {
			return nil, fmt.Errorf("fixture %d: user is required", i)
		}
		if len(e.Scores) != len(domain.Criteria) {
			return nil, fmt.Errorf("fixture %d: want %d scores, got %d", i, len(domain.Criteria), len(e.Scores))
		}
	}
	return entries, nil
}

// loadFixtures submits every entry through the rating flow and returns how
// many rows were stored.
func loadFixtures(ctx context.Context, svc submitter, entries []ratingEntry, logger zerolog.Logger) (int, error) {
	stored := 0
	for i, e := range entries {
		_, ok, err := svc.Submit(ctx, e.User, service.SubmitParams{
			Movie:   e.Movie,
			Scores:  domain.ScoresFromSlice(e.Scores),
			Comment: e.Comment,
		})
		if err != nil {
			return stored, fmt.Errorf("fixture %d (%s/%s): %w", i, e.User, e.Movie, err)
		}
		if !ok {
			logger.Warn().Int("index", i).Str("user", e.User).Msg("skipped fixture without movie")
			continue
		}
		stored++
	}
	return stored, nil
}
