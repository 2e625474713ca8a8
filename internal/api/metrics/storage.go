package metrics

import (
	"context"
	"time"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

// InstrumentedStorage records counters and latencies around an ObjectStorage.
type InstrumentedStorage struct {
	next ports.ObjectStorage
}

func InstrumentStorage(next ports.ObjectStorage) *InstrumentedStorage {
	return &InstrumentedStorage{next: next}
}

func (s *InstrumentedStorage) Put(ctx context.Context, in ports.PutObjectInput) (*domain.StoredAsset, error) {
	start := time.Now()
	asset, err := s.next.Put(ctx, in)
	observe("put", start, err)
	if err == nil {
		StoredBytesTotal.Add(float64(len(in.Data)))
	}
	return asset, err
}

func (s *InstrumentedStorage) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := s.next.Delete(ctx, path)
	observe("delete", start, err)
	return err
}

func (s *InstrumentedStorage) List(ctx context.Context, folder string) ([]domain.StoredAsset, error) {
	start := time.Now()
	assets, err := s.next.List(ctx, folder)
	observe("list", start, err)
	return assets, err
}

func (s *InstrumentedStorage) PublicURLFor(path string) string {
	return s.next.PublicURLFor(path)
}

func (s *InstrumentedStorage) PathFromURL(rawURL string) (string, bool) {
	return s.next.PathFromURL(rawURL)
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	observe("ping", start, err)
	return err
}

func observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StorageOperationsTotal.WithLabelValues(op, result).Inc()
	StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
