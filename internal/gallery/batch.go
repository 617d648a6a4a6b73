package gallery

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Source is one image handed to InsertBatch.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads the image from a local path.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BatchFailure records one source that could not be inserted.
type BatchFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
	Err    error  `json:"-"`
}

// BatchResult summarises an InsertBatch call.
type BatchResult struct {
	ID        string         `json:"batch_id"`
	Inserted  []string       `json:"inserted"`
	Failed    []BatchFailure `json:"failed"`
	Succeeded int            `json:"succeeded"`
}

// InsertBatch inserts every source into category in order. A failing source
// is recorded and the batch moves on. Cancellation is honoured between files;
// sources not attempted are reported as failed with the context error.
func (s *Store) InsertBatch(ctx context.Context, category string, sources []Source) BatchResult {
	res := BatchResult{
		ID:       uuid.NewString(),
		Inserted: []string{},
		Failed:   []BatchFailure{},
	}
	log := s.logger.With(slog.String("batch_id", res.ID), slog.String("category", category))

	for _, src := range sources {
		name, err := s.insertSource(ctx, category, src)
		if err != nil {
			log.Warn("batch item failed", slog.String("source", src.Name), slog.String("error", err.Error()))
			res.Failed = append(res.Failed, BatchFailure{Source: src.Name, Error: err.Error(), Err: err})
			continue
		}
		res.Inserted = append(res.Inserted, name)
	}
	res.Succeeded = len(res.Inserted)

	log.Info("batch finished", slog.Int("inserted", res.Succeeded), slog.Int("failed", len(res.Failed)))
	return res
}

func (s *Store) insertSource(ctx context.Context, category string, src Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rc, err := src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.Insert(ctx, category, rc)
}
