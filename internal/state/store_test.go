package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) cb(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, key+"="+value)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSetIdempotent(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	s.Watch("k", rec.cb)

	if !s.Set("k", "v") {
		t.Fatal("first Set reported no change")
	}
	if s.Set("k", "v") {
		t.Fatal("second Set reported a change")
	}
	if rec.count() != 1 {
		t.Fatalf("notifications = %d, want 1", rec.count())
	}
	if got := s.Get("k", ""); got != "v" {
		t.Errorf("Get = %q", got)
	}
}

func TestWildcardAndExactWatch(t *testing.T) {
	s := NewStore()
	all := &recorder{}
	onlyA := &recorder{}
	s.Watch("", all.cb)
	s.Watch("a", onlyA.cb)

	s.Set("b", "1")
	s.Set("a", "2")
	s.Set("c", "3")

	if diff := cmp.Diff([]string{"b=1", "a=2", "c=3"}, all.events); diff != "" {
		t.Errorf("wildcard events (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a=2"}, onlyA.events); diff != "" {
		t.Errorf("exact events (-want +got):\n%s", diff)
	}
}

func TestNotificationOrder(t *testing.T) {
	s := NewStore()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		s.Watch("k", func(string, string) { order = append(order, i) })
	}
	h := s.Watch("k", func(string, string) { order = append(order, 4) })
	s.Unwatch(h)
	s.Watch("k", func(string, string) { order = append(order, 5) })

	s.Set("k", "x")
	if diff := cmp.Diff([]int{1, 2, 3, 5}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestCallbackMayUseStore(t *testing.T) {
	s := NewStore()
	s.Watch("count", func(_, v string) {
		s.Set("label", "count is "+v+" (was "+s.Get("label", "none")+")")
	})
	s.Set("count", "1")
	if got := s.Get("label", ""); got != "count is 1 (was none)" {
		t.Errorf("label = %q", got)
	}
}

func TestUnwatchDuringNotification(t *testing.T) {
	s := NewStore()
	var second Handle
	fired := 0
	s.Watch("k", func(string, string) { s.Unwatch(second) })
	second = s.Watch("k", func(string, string) { fired++ })

	s.Set("k", "1")
	if fired != 0 {
		t.Errorf("removed watch fired %d times", fired)
	}
	if s.WatchCount() != 1 {
		t.Errorf("WatchCount = %d, want 1", s.WatchCount())
	}
}

func TestHandlesUnique(t *testing.T) {
	s := NewStore()
	seen := map[Handle]bool{}
	for i := 0; i < 50; i++ {
		h := s.Watch("k", func(string, string) {})
		if h == 0 || seen[h] {
			t.Fatalf("handle %d reused or zero", h)
		}
		seen[h] = true
		if i%2 == 0 {
			s.Unwatch(h)
		}
	}
	s.Deinit()
	if h := s.Watch("k", func(string, string) {}); seen[h] {
		t.Fatalf("handle %d reissued after Deinit", h)
	}
	if s.Watch("k", nil) != 0 {
		t.Error("nil callback should not register")
	}
	if s.Unwatch(0) || s.Unwatch(9999) {
		t.Error("Unwatch of unknown handle reported success")
	}
}

func TestEmptyKeyIgnored(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	s.Watch("", rec.cb)
	if s.Set("", "v") {
		t.Error("Set with empty key reported a change")
	}
	if s.Len() != 0 || rec.count() != 0 {
		t.Errorf("empty key stored: len=%d notifications=%d", s.Len(), rec.count())
	}
}

func TestTypedAccessors(t *testing.T) {
	s := NewStore()
	s.SetInt("n", 42)
	s.SetBool("b", true)
	s.Set("one", "1")
	s.Set("no", "FALSE")
	s.Set("junk", "abc")

	if got := s.GetInt("n", 0); got != 42 {
		t.Errorf("GetInt = %d", got)
	}
	if got := s.Get("n", ""); got != "42" {
		t.Errorf("raw int = %q", got)
	}
	if got := s.GetInt("junk", -1); got != -1 {
		t.Errorf("GetInt(junk) = %d", got)
	}
	if got := s.GetInt("missing", 7); got != 7 {
		t.Errorf("GetInt(missing) = %d", got)
	}
	if !s.GetBool("b", false) || !s.GetBool("one", false) {
		t.Error("GetBool true cases failed")
	}
	if s.GetBool("no", true) {
		t.Error("GetBool(FALSE) = true")
	}
	if !s.GetBool("junk", true) {
		t.Error("GetBool(junk) should return default")
	}
}

func TestSeed(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	s.Watch("", rec.cb)
	s.Set("existing", "keep")

	s.Seed([]Pair{{Key: "existing", Value: "overwrite"}, {Key: "fresh", Value: "0"}, {Key: "", Value: "x"}})

	if got := s.Get("existing", ""); got != "keep" {
		t.Errorf("existing = %q, want keep", got)
	}
	if got := s.Get("fresh", ""); got != "0" {
		t.Errorf("fresh = %q", got)
	}
	if rec.count() != 1 {
		t.Errorf("notifications = %d, want 1 (seed is silent)", rec.count())
	}
}

func TestClearAndDeinit(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	s.Watch("k", rec.cb)
	s.Set("k", "1")
	s.Clear()
	if _, ok := s.Lookup("k"); ok {
		t.Fatal("Clear kept entry")
	}
	s.Set("k", "1")
	if rec.count() != 2 {
		t.Fatalf("watch lost after Clear: %d notifications", rec.count())
	}
	s.Deinit()
	s.Set("k", "2")
	if rec.count() != 2 || s.WatchCount() != 0 {
		t.Fatalf("watch survived Deinit")
	}
}

func TestSnapshotAndKeys(t *testing.T) {
	s := NewStore()
	s.Set("b", "2")
	s.Set("a", "1")
	if diff := cmp.Diff(map[string]string{"a": "1", "b": "2"}, s.Snapshot()); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, s.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestConcurrentSet(t *testing.T) {
	s := NewStore()
	rec := &recorder{}
	s.Watch("", rec.cb)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Set(fmt.Sprintf("k%d", g), fmt.Sprint(i))
			}
		}(g)
	}
	wg.Wait()
	if rec.count() != 800 {
		t.Errorf("notifications = %d, want 800", rec.count())
	}
	if s.Len() != 8 {
		t.Errorf("Len = %d, want 8", s.Len())
	}
}
