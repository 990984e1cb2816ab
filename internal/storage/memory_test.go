package storage

import (
	"errors"
	"testing"

	"KoordeDHT/internal/domain"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := NewMemoryStorage(nil)
	res := domain.Resource{Key: 42, RawKey: "foo", Value: "bar"}
	s.Put(res)

	got, err := s.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "bar" {
		t.Errorf("Get value = %q, want %q", got.Value, "bar")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := NewMemoryStorage(nil)
	_, err := s.Get(7)
	if !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("Get error = %v, want ErrResourceNotFound", err)
	}
}

func TestDeleteRemovesResource(t *testing.T) {
	s := NewMemoryStorage(nil)
	s.Put(domain.Resource{Key: 1, RawKey: "a", Value: "1"})

	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(1); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("Get after delete = %v, want ErrResourceNotFound", err)
	}
	if err := s.Delete(1); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("second Delete = %v, want ErrResourceNotFound", err)
	}
}

func TestBetweenFiltersByRange(t *testing.T) {
	space, err := domain.NewSpace(8, 3)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}
	s := NewMemoryStorage(nil)
	s.Put(domain.Resource{Key: 5, RawKey: "five", Value: "v5"})
	s.Put(domain.Resource{Key: 15, RawKey: "fifteen", Value: "v15"})
	s.Put(domain.Resource{Key: 25, RawKey: "twentyfive", Value: "v25"})

	got := s.Between(space, 1, 15)
	if len(got) != 2 {
		t.Fatalf("Between returned %d resources, want 2: %+v", len(got), got)
	}
}

func TestAllReturnsEverything(t *testing.T) {
	s := NewMemoryStorage(nil)
	s.Put(domain.Resource{Key: 1, RawKey: "a", Value: "1"})
	s.Put(domain.Resource{Key: 2, RawKey: "b", Value: "2"})

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() length = %d, want 2", len(all))
	}
}
