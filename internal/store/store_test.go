package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestChecksum(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		a := Checksum([]string{"a.com", "b.com"})
		b := Checksum([]string{"b.com", "a.com"})
		if a != b {
			t.Error("checksum should not depend on domain order")
		}
	})

	t.Run("different sets differ", func(t *testing.T) {
		a := Checksum([]string{"a.com"})
		b := Checksum([]string{"a.com", "b.com"})
		if a == b {
			t.Error("different domain sets should have different checksums")
		}
	})
}

func TestReplaceAndGet(t *testing.T) {
	st := openTestStore(t)

	expiry := time.Now().Add(90 * 24 * time.Hour)
	domains := []string{"example.com", "www.example.com"}

	if err := st.Replace("example.com", "certbot", domains, expiry); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	rec, err := st.Get("example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.Provider != "certbot" {
		t.Errorf("expected provider certbot, got %s", rec.Provider)
	}
	if got := rec.DomainList(); len(got) != 2 || got[0] != "example.com" {
		t.Errorf("unexpected domains: %v", got)
	}
	if rec.Checksum != Checksum(domains) {
		t.Error("stored checksum does not match")
	}

	t.Run("replace overwrites", func(t *testing.T) {
		newDomains := []string{"example.com"}
		if err := st.Replace("example.com", "openssl", newDomains, expiry); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}

		rec, err := st.Get("example.com")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec.Provider != "openssl" {
			t.Errorf("expected provider openssl, got %s", rec.Provider)
		}
		if len(rec.DomainList()) != 1 {
			t.Errorf("unexpected domains: %v", rec.DomainList())
		}
	})

	t.Run("missing record", func(t *testing.T) {
		rec, err := st.Get("nope")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec != nil {
			t.Error("expected nil for missing record")
		}
	})
}

func TestCheck(t *testing.T) {
	st := openTestStore(t)

	domains := []string{"a.com", "b.com"}
	if err := st.Replace("site", "certbot", domains, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	t.Run("hit", func(t *testing.T) {
		ok, err := st.Check("site", []string{"b.com", "a.com"})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !ok {
			t.Error("expected hit for same domain set in different order")
		}
	})

	t.Run("miss on changed domains", func(t *testing.T) {
		ok, err := st.Check("site", []string{"a.com"})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if ok {
			t.Error("expected miss for changed domain set")
		}
	})

	t.Run("miss on unknown name", func(t *testing.T) {
		ok, err := st.Check("unknown", domains)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if ok {
			t.Error("expected miss for unknown record")
		}
	})
}

func TestUpdateExpiryAndDue(t *testing.T) {
	st := openTestStore(t)

	soon := time.Now().Add(10 * 24 * time.Hour)
	later := time.Now().Add(80 * 24 * time.Hour)

	if err := st.Replace("due-cert", "certbot", []string{"due.com"}, soon); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := st.Replace("fresh-cert", "certbot", []string{"fresh.com"}, later); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	due, err := st.Due(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Due failed: %v", err)
	}
	if len(due) != 1 || due[0].Name != "due-cert" {
		t.Fatalf("expected only due-cert, got %v", due)
	}

	if err := st.UpdateExpiry("due-cert", later); err != nil {
		t.Fatalf("UpdateExpiry failed: %v", err)
	}

	due, err = st.Due(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Due failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected no due certs after update, got %v", due)
	}
}

func TestRemoveAndAll(t *testing.T) {
	st := openTestStore(t)

	expiry := time.Now().Add(time.Hour)
	for _, name := range []string{"b-cert", "a-cert"} {
		if err := st.Replace(name, "openssl", []string{name + ".internal"}, expiry); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
	}

	all, err := st.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].Name != "a-cert" || all[1].Name != "b-cert" {
		t.Errorf("expected sorted records, got %v", all)
	}

	if err := st.Remove("a-cert"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	all, err = st.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "b-cert" {
		t.Errorf("unexpected records after remove: %v", all)
	}

	t.Run("remove absent record", func(t *testing.T) {
		if err := st.Remove("never-existed"); err != nil {
			t.Errorf("removing absent record should not fail: %v", err)
		}
	})
}
