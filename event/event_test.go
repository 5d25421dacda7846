package event

import "testing"

func TestDepthBucketClamps(t *testing.T) {
	cases := []struct {
		depth int
		want  int
	}{
		{0, 0},
		{5, 5},
		{6, 5},
		{100, 5},
		{-1, 0},
	}
	for _, c := range cases {
		if got := DepthBucket(c.depth); got != c.want {
			t.Errorf("DepthBucket(%d) = %d, want %d", c.depth, got, c.want)
		}
	}
}

func TestRewardClampsIntensity(t *testing.T) {
	if Reward(200).Intensity != 100 {
		t.Fatal("reward intensity must clamp to 100")
	}
	if Reward(-5).Intensity != 0 {
		t.Fatal("reward intensity must clamp to 0")
	}
}

func TestEventEqualityIsValueLike(t *testing.T) {
	a := Opcode(3, 2)
	b := Opcode(3, 2)
	if a != b {
		t.Fatal("identical events must compare equal via ==")
	}
	c := Opcode(3, 3)
	if a == c {
		t.Fatal("events with different depth buckets must differ")
	}
}

func TestEventUsableAsMapKey(t *testing.T) {
	m := map[Event]int{}
	m[Opcode(1, 0)] = 1
	m[Reward(100)] = 2
	if m[Opcode(1, 0)] != 1 || m[Reward(100)] != 2 {
		t.Fatal("events must be usable as map keys")
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Error(StackUnderflow, -1)
	b := Error(StackUnderflow, -1)
	if a.Hash() != b.Hash() {
		t.Fatal("identical events must hash identically")
	}
	c := Error(InvalidJump, 5)
	if a.Hash() == c.Hash() {
		t.Fatal("distinct events should not usually collide (got accidental collision)")
	}
}
