package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/domain"
	"github.com/spec-kit/ticket-archiver/internal/observability"
)

// Archiver copies remote attachments into durable local storage. Each fetch
// is independent: failures drop the item and never abort the batch.
type Archiver struct {
	dir     string
	client  *http.Client
	workers int
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewArchiver builds an archiver writing into dir with a bounded fetch
// fan-out and a per-item timeout.
func NewArchiver(dir string, workers int, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Archiver {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Archiver{
		dir:     dir,
		client:  &http.Client{},
		workers: workers,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Archive fetches every reference concurrently and returns the subset that
// succeeded, in the original reference order. It never returns an error:
// a fully failed batch yields an empty result.
func (a *Archiver) Archive(ctx context.Context, refs []domain.AttachmentRef) []domain.ArchivedAttachment {
	if len(refs) == 0 {
		return nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.Error("create attachment dir", zap.String("dir", a.dir), zap.Error(err))
		return nil
	}

	results := make([]*domain.ArchivedAttachment, len(refs))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref domain.AttachmentRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path, err := a.fetch(ctx, ref)
			if err != nil {
				a.metrics.Inc(observability.MetricAttachmentsDropped)
				a.logger.Warn("attachment dropped",
					zap.String("url", ref.URL),
					zap.String("filename", ref.Filename),
					zap.Error(err))
				return
			}
			a.metrics.Inc(observability.MetricAttachmentsArchived)
			results[i] = &domain.ArchivedAttachment{
				Path:  path,
				URL:   ref.URL,
				Class: ref.Class,
			}
		}(i, ref)
	}
	wg.Wait()

	archived := make([]domain.ArchivedAttachment, 0, len(refs))
	for _, res := range results {
		if res != nil {
			archived = append(archived, *res)
		}
	}
	return archived
}

// fetch downloads one attachment to "{remoteId}_{filename}". The write goes
// through a temp file and a rename so a truncated file is never observable.
func (a *Archiver) fetch(ctx context.Context, ref domain.AttachmentRef) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name := ref.ID + "_" + filepath.Base(ref.Filename)
	path := filepath.Join(a.dir, name)
	tmp := path + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
