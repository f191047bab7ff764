// Package storagetest holds a conformance suite shared by the
// storage.Repository implementations.
package storagetest

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/jmcleod/mathquiz/storage"
)

// Run exercises repo against the storage.Repository contract.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put("ns1", "ACCOUNT", "a1", []byte("alpha")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get("ns1", "ACCOUNT", "a1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "alpha" {
			t.Errorf("expected alpha, got %q", got)
		}

		got[0] = 'X'
		again, _ := repo.Get("ns1", "ACCOUNT", "a1")
		if string(again) != "alpha" {
			t.Error("mutating a returned record must not change the stored record")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := repo.Put("ns1", "ACCOUNT", "a1", []byte("beta")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get("ns1", "ACCOUNT", "a1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "beta" {
			t.Errorf("expected beta, got %q", got)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get("missing-ns", "ACCOUNT", "a1")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing namespace, got %v", err)
		}
		_, err = repo.Get("ns1", "ACCOUNT", "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing record, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		for _, id := range []string{"q1", "q2", "q3"} {
			if err := repo.Put("ns2", "QUIZ", id, []byte(id)); err != nil {
				t.Fatalf("Put %s failed: %v", id, err)
			}
		}
		if err := repo.Put("ns2", "QUIZZES", "other", []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := repo.Put("ns3", "QUIZ", "elsewhere", []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		ids, err := repo.List("ns2", "QUIZ")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		sort.Strings(ids)
		if len(ids) != 3 || ids[0] != "q1" || ids[1] != "q2" || ids[2] != "q3" {
			t.Errorf("unexpected ids: %v", ids)
		}

		ids, err = repo.List("missing-ns", "QUIZ")
		if err != nil {
			t.Errorf("List of missing namespace should not fail, got %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids, got %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Put("ns4", "TOKEN", "t1", []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := repo.Delete("ns4", "TOKEN", "t1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get("ns4", "TOKEN", "t1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete("ns4", "TOKEN", "t1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
		if err := repo.Delete("missing-ns", "TOKEN", "t1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing namespace, got %v", err)
		}
	})

	t.Run("NextSequence", func(t *testing.T) {
		for want := uint64(1); want <= 3; want++ {
			got, err := repo.NextSequence("seq-a")
			if err != nil {
				t.Fatalf("NextSequence failed: %v", err)
			}
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		}
		got, err := repo.NextSequence("seq-b")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != 1 {
			t.Errorf("sequences must be per namespace, got %d", got)
		}
	})

	t.Run("ConcurrentSequence", func(t *testing.T) {
		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[uint64]bool)
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.NextSequence("seq-c")
				if err != nil {
					t.Errorf("NextSequence failed: %v", err)
					return
				}
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		if len(seen) != workers {
			t.Errorf("expected %d distinct values, got %d", workers, len(seen))
		}
	})

	t.Run("JSONRecords", func(t *testing.T) {
		type account struct {
			Email string `json:"email"`
			Seq   uint64 `json:"seq"`
		}
		in := account{Email: "user@example.com", Seq: 7}
		if err := storage.PutJSON(repo, "ns6", "ACCOUNT", in.Email, in); err != nil {
			t.Fatalf("PutJSON failed: %v", err)
		}
		var out account
		if err := storage.GetJSON(repo, "ns6", "ACCOUNT", in.Email, &out); err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
		if out != in {
			t.Errorf("expected %+v, got %+v", in, out)
		}
		if err := storage.GetJSON(repo, "ns6", "ACCOUNT", "missing", &out); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SealedRecords", func(t *testing.T) {
		key := make([]byte, 32)
		for i := range key {
			key[i] = byte(i)
		}
		aad := []byte("session:default")
		if err := storage.PutSealed(repo, "ns5", "SESSION", "default", key, []byte("secret"), aad); err != nil {
			t.Fatalf("PutSealed failed: %v", err)
		}
		raw, err := repo.Get("ns5", "SESSION", "default")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(raw) == "secret" {
			t.Error("sealed record stored in plaintext")
		}
		got, err := storage.GetSealed(repo, "ns5", "SESSION", "default", key, aad)
		if err != nil {
			t.Fatalf("GetSealed failed: %v", err)
		}
		if string(got) != "secret" {
			t.Errorf("expected secret, got %q", got)
		}
		if _, err := storage.GetSealed(repo, "ns5", "SESSION", "default", key, []byte("session:other")); err == nil {
			t.Error("expected error opening with the wrong AAD")
		}
	})
}
