package weightedinference

import (
	"context"
	"testing"

	"github.com/thezeorymer/soulgain/plasticity"
	"github.com/thezeorymer/soulgain/skill"
	"github.com/thezeorymer/soulgain/value"
)

func TestDeduceReportsNotFound(t *testing.T) {
	store := plasticity.New()
	defer store.Close()
	lib := skill.New()
	e := New(store, lib)

	program, ok := e.Deduce(context.Background(), []value.Value{value.Number(1)}, []value.Value{value.Number(2)}, 100, 10)
	if ok {
		t.Fatal("expected not-found from the signature-only collaborator")
	}
	if program != nil {
		t.Fatalf("expected a nil program on not-found, got %v", program)
	}
}

func TestDeduceRespectsCancelledContext(t *testing.T) {
	store := plasticity.New()
	defer store.Close()
	lib := skill.New()
	e := New(store, lib)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := e.Deduce(ctx, nil, nil, 100, 10)
	if ok {
		t.Fatal("a cancelled context must never report success")
	}
}
