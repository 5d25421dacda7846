package skill

import "testing"

func TestDefineAndGet(t *testing.T) {
	l := New()
	l.Define(1000, []float64{1, 2, 3})
	body, ok := l.Get(1000)
	if !ok {
		t.Fatal("Get must find a defined skill")
	}
	if len(body) != 3 || body[0] != 1 || body[2] != 3 {
		t.Fatalf("got %v", body)
	}
}

func TestGetMissing(t *testing.T) {
	l := New()
	if _, ok := l.Get(1234); ok {
		t.Fatal("Get must miss an undefined id")
	}
}

func TestDefineOverwrites(t *testing.T) {
	l := New()
	l.Define(1000, []float64{1})
	l.Define(1000, []float64{2, 3})
	body, _ := l.Get(1000)
	if len(body) != 2 || body[0] != 2 {
		t.Fatalf("overwrite did not take effect: %v", body)
	}
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	l := New()
	l.Define(1000, []float64{1, 2})
	body, _ := l.Get(1000)
	body[0] = 999
	fresh, _ := l.Get(1000)
	if fresh[0] != 1 {
		t.Fatal("mutating a returned body must not affect stored state")
	}
}

func TestSnapshotRestoreIndependence(t *testing.T) {
	l := New()
	l.Define(1000, []float64{1, 2})
	snap := l.Snapshot()
	l.Define(1000, []float64{9, 9, 9})
	restored := snap[1000]
	if len(restored) != 2 || restored[0] != 1 {
		t.Fatal("snapshot must be unaffected by later mutation")
	}
	l.Restore(snap)
	body, _ := l.Get(1000)
	if len(body) != 2 || body[0] != 1 {
		t.Fatal("restore must bring back the snapshot contents")
	}
}

func TestRecentlyTouchedTracksDefine(t *testing.T) {
	l := New()
	l.Define(1000, []float64{1})
	l.Define(1001, []float64{2})
	touched := l.RecentlyTouched()
	if len(touched) != 2 {
		t.Fatalf("expected 2 touched ids, got %d", len(touched))
	}
}
