package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

type fakeStorage struct {
	err error
}

func (f *fakeStorage) Put(_ context.Context, in ports.PutObjectInput) (*domain.StoredAsset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StoredAsset{Path: in.Folder + "/x", Size: int64(len(in.Data))}, nil
}

func (f *fakeStorage) Delete(context.Context, string) error { return f.err }

func (f *fakeStorage) List(context.Context, string) ([]domain.StoredAsset, error) {
	return nil, f.err
}

func (f *fakeStorage) PublicURLFor(path string) string { return "https://cdn.test/" + path }

func (f *fakeStorage) PathFromURL(string) (string, bool) { return "avatars/x", true }

func (f *fakeStorage) Ping(context.Context) error { return f.err }

func TestInstrumentedStorage_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	okStore := InstrumentStorage(&fakeStorage{})
	badStore := InstrumentStorage(&fakeStorage{err: &domain.StorageError{Op: "delete", Err: errors.New("boom")}})

	putsBefore := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("put", "success"))
	bytesBefore := testutil.ToFloat64(StoredBytesTotal)
	failedBefore := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("delete", "error"))

	if _, err := okStore.Put(ctx, ports.PutObjectInput{Data: []byte("12345"), Folder: "avatars"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := badStore.Delete(ctx, "avatars/x"); err == nil {
		t.Fatalf("expected delete error to pass through")
	}

	if got := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("put", "success")) - putsBefore; got != 1 {
		t.Fatalf("expected 1 successful put, got %v", got)
	}
	if got := testutil.ToFloat64(StoredBytesTotal) - bytesBefore; got != 5 {
		t.Fatalf("expected 5 uploaded bytes, got %v", got)
	}
	if got := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("delete", "error")) - failedBefore; got != 1 {
		t.Fatalf("expected 1 failed delete, got %v", got)
	}
	if okStore.PublicURLFor("a.png") != "https://cdn.test/a.png" {
		t.Fatalf("expected PublicURLFor to pass through")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domain.NewValidationError("bad"), "invalid"},
		{fmt.Errorf("wrap: %w", domain.ErrEmailTaken), "conflict"},
		{domain.ErrInvalidCredentials, "unauthorized"},
		{&domain.StorageError{Op: "put"}, "storage_error"},
		{errors.New("db down"), "error"},
	}
	for _, tc := range tests {
		if got := Outcome(tc.err); got != tc.want {
			t.Errorf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
