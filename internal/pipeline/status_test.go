package pipeline

import (
	"sync"
	"testing"
)

func TestStatusStoreSetGet(t *testing.T) {
	store := NewStatusStore()

	if _, ok := store.Get("campaign_20250314_150926_ab12cd34"); ok {
		t.Error("Expected a miss for an unknown campaign id")
	}

	store.Set("campaign_20250314_150926_ab12cd34", Status{
		Status: StatusStarting,
		Topic:  "Automating Client Onboarding",
	})

	status, ok := store.Get("campaign_20250314_150926_ab12cd34")
	if !ok {
		t.Fatal("Expected a hit after Set")
	}
	if status.Status != StatusStarting {
		t.Errorf("Expected %q, got %q", StatusStarting, status.Status)
	}
	if status.Topic != "Automating Client Onboarding" {
		t.Errorf("Unexpected topic: %q", status.Topic)
	}
}

func TestStatusStoreReplace(t *testing.T) {
	store := NewStatusStore()
	id := "campaign_20250314_150926_ab12cd34"

	store.Set(id, Status{Status: StatusStarting})
	store.Set(id, Status{Status: StatusRunning, StartedAt: "2025-03-14T15:09:26Z"})

	status, _ := store.Get(id)
	if status.Status != StatusRunning {
		t.Errorf("Expected the replacement entry, got %q", status.Status)
	}
	if store.Len() != 1 {
		t.Errorf("Expected one tracked run, got %d", store.Len())
	}
}

func TestStatusStoreConcurrentAccess(t *testing.T) {
	store := NewStatusStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		id := storeTestID(i)
		go func() {
			defer wg.Done()
			store.Set(id, Status{Status: StatusRunning})
		}()
		go func() {
			defer wg.Done()
			store.Get(id)
		}()
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("Expected 10 tracked runs, got %d", store.Len())
	}
}

func storeTestID(i int) string {
	return "campaign_20250314_150926_" + string(rune('a'+i)) + "b12cd34"
}
