package memory

import (
	"math"
	"testing"

	"github.com/thezeorymer/soulgain/value"
)

func TestWriteReadRoundTrip(t *testing.T) {
	m := New()
	if !m.Write(1.5, value.Number(42)) {
		t.Fatal("write of a finite address must succeed")
	}
	got, ok := m.Read(1.5)
	if !ok {
		t.Fatal("read must hit after write")
	}
	n, _ := got.AsNumber()
	if n != 42 {
		t.Fatalf("got %v, want 42", n)
	}
}

func TestWriteRejectsNonFinite(t *testing.T) {
	m := New()
	for _, addr := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if m.Write(addr, value.Number(1)) {
			t.Fatalf("write(%v) must fail", addr)
		}
	}
	if m.Len() != 0 {
		t.Fatal("memory must be unchanged after rejected writes")
	}
}

func TestReadMissReturnsAbsent(t *testing.T) {
	m := New()
	_, ok := m.Read(7)
	if ok {
		t.Fatal("read of unwritten address must miss")
	}
}

func TestQuantizationStability(t *testing.T) {
	m := New()
	base := 1000.0
	offset := 0.25
	m.Write(base+offset, value.Number(1))
	got, ok := m.Read(base + offset)
	if !ok {
		t.Fatal("same computed address must round-trip")
	}
	n, _ := got.AsNumber()
	if n != 1 {
		t.Fatal("value at recomputed address must match")
	}
}

func TestWriteOverwrites(t *testing.T) {
	m := New()
	m.Write(1, value.Number(1))
	m.Write(1, value.Number(2))
	got, _ := m.Read(1)
	n, _ := got.AsNumber()
	if n != 2 {
		t.Fatal("second write must overwrite the first")
	}
	if m.Len() != 1 {
		t.Fatal("overwrite must not grow the address count")
	}
}
