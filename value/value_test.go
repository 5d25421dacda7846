package value

import (
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nonzero", Number(1), true},
		{"nan", Number(math.NaN()), false},
		{"inf", Number(math.Inf(1)), false},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestEqualNumberNaN(t *testing.T) {
	nan := Number(math.NaN())
	if nan.Equal(nan) {
		t.Fatal("NaN must not equal itself")
	}
}

func TestEqualBitExact(t *testing.T) {
	if !Number(1.5).Equal(Number(1.5)) {
		t.Fatal("equal numbers must compare equal")
	}
	if Number(0).Equal(Number(math.Copysign(0, -1))) == false {
		// IEEE 754 treats +0 == -0; bit-exact here still means ==.
		t.Fatal("+0 and -0 compare equal under Go's == operator")
	}
}

func TestEqualString(t *testing.T) {
	if !String("ab").Equal(String("ab")) {
		t.Fatal("equal content strings must compare equal")
	}
	if String("ab").Equal(String("ac")) {
		t.Fatal("different content strings must not compare equal")
	}
}

func TestEqualCrossKind(t *testing.T) {
	if Number(0).Equal(Bool(false)) {
		t.Fatal("values of different kinds must never compare equal")
	}
	if Nil.Equal(Number(0)) {
		t.Fatal("nil must not equal number zero")
	}
}

func TestAddStringConcatenation(t *testing.T) {
	got, ok := Add(String("foo"), String("bar"))
	if !ok {
		t.Fatal("Add on two strings must succeed")
	}
	s, _ := got.AsString()
	if s != "foobar" {
		t.Fatalf("got %q, want foobar", s)
	}
}

func TestAddRejectsNonStrings(t *testing.T) {
	if _, ok := Add(Number(1), String("x")); ok {
		t.Fatal("Add must reject mixed-kind operands")
	}
}

func TestAddProducesFreshString(t *testing.T) {
	a := String("foo")
	b := String("bar")
	got, _ := Add(a, b)
	as, _ := a.AsString()
	if as != "foo" {
		t.Fatal("Add must not mutate its operands")
	}
	gs, _ := got.AsString()
	if gs != "foobar" {
		t.Fatalf("got %q", gs)
	}
}

func TestKindString(t *testing.T) {
	if KindNumber.String() != "number" {
		t.Fatalf("got %q", KindNumber.String())
	}
}
