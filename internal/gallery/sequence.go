package gallery

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/imgbed/internal/metrics"
	"github.com/starford/imgbed/internal/models"
)

// canonicalStem matches positive integers without leading zeros. Names such
// as "0", "007" or "cover" are foreign: listed last, never renumbered.
var canonicalStem = regexp.MustCompile(`^[1-9][0-9]*$`)

// ParseIndex returns the sequence index encoded in name, or 0 for foreign names.
func ParseIndex(name, ext string) int {
	stem, ok := strings.CutSuffix(name, ext)
	if !ok || !canonicalStem.MatchString(stem) {
		return 0
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0
	}
	return n
}

func assetName(index int, ext string) string {
	return strconv.Itoa(index) + ext
}

// sortAssets orders assets by ascending index. Foreign entries go last and
// keep their incoming relative order.
func sortAssets(assets []models.Asset) {
	slices.SortStableFunc(assets, func(a, b models.Asset) int {
		switch {
		case a.Foreign() && b.Foreign():
			return 0
		case a.Foreign():
			return 1
		case b.Foreign():
			return -1
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

// ErrSequenceFull means the highest index in a category is math.MaxInt, so
// no next name exists.
var ErrSequenceFull = errors.New("gallery: no index left after the highest asset")

// nextIndex is one past the highest index present, or 1 for an empty category.
func nextIndex(assets []models.Asset) (int, error) {
	last := 0
	for _, a := range assets {
		last = max(last, a.Index)
	}
	if last == math.MaxInt {
		return 0, ErrSequenceFull
	}
	return last + 1, nil
}

// Renumber renames the numbered assets of category to 1..N in listing order
// and returns how many files it renamed. Foreign entries are left alone.
//
// Renames run in ascending order. Indices are distinct positive integers, so
// the k-th asset's index is always >= k and its target name is either its own
// or one already vacated earlier in the walk. Any change that can produce a
// target above the current index (e.g. inserting mid-sequence) must stage
// through temporary names instead.
func (s *Store) Renumber(category string) (int, error) {
	if err := ValidateCategory(category); err != nil {
		return 0, err
	}
	assets, err := s.listAssets(category)
	if err != nil {
		return 0, err
	}

	ext := s.codec.Extension()
	renamed := 0
	target := 1
	for _, a := range assets {
		if a.Foreign() {
			continue
		}
		want := assetName(target, ext)
		target++
		if a.Name == want {
			continue
		}
		from, to := filepath.Join(category, a.Name), filepath.Join(category, want)
		if err := s.fs.Move(from, to); err != nil {
			metrics.RenumberFailuresTotal.Inc()
			s.logger.Warn("renumber aborted",
				slog.String("category", category),
				slog.String("from", a.Name),
				slog.String("to", want),
				slog.Int("renamed", renamed),
				slog.String("error", err.Error()))
			return renamed, fmt.Errorf("gallery: renumber %s: %w", category, err)
		}
		renamed++
		metrics.RenamesTotal.Inc()
		s.logger.Debug("renamed", slog.String("category", category), slog.String("from", a.Name), slog.String("to", want))
	}

	if renamed > 0 {
		s.logger.Info("category renumbered", slog.String("category", category), slog.Int("renamed", renamed))
	}
	return renamed, nil
}
