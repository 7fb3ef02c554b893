package depot

import (
	"errors"
	"testing"
)

func TestLayerAdmitLimits(t *testing.T) {
	l := &layerState{policy: LayerPolicy{Name: "t", MaxFiles: 2, MaxBytes: 100}}

	if err := l.admit(60); err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	if err := l.admit(50); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected byte limit rejection, got %v", err)
	}
	if err := l.admit(40); err != nil {
		t.Fatalf("expected exact fill admitted, got %v", err)
	}
	if err := l.admit(1); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected file limit rejection, got %v", err)
	}
	if usage := l.usage(); usage.Files != 2 || usage.Bytes != 100 {
		t.Fatalf("unexpected usage after rejections: %+v", usage)
	}
}

func TestLayerZeroLimitsAreUnlimited(t *testing.T) {
	l := &layerState{policy: LayerPolicy{Name: "t"}}
	for i := 0; i < 100; i++ {
		if err := l.admit(1 << 30); err != nil {
			t.Fatalf("admit returned error: %v", err)
		}
	}
}

func TestLayerReleaseAndAdjust(t *testing.T) {
	l := &layerState{policy: LayerPolicy{Name: "t", MaxBytes: 100}}

	if err := l.admit(80); err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	l.release(80)
	if usage := l.usage(); usage.Files != 0 || usage.Bytes != 0 {
		t.Fatalf("expected empty after release, got %+v", usage)
	}

	if err := l.admit(80); err != nil {
		t.Fatalf("admit returned error: %v", err)
	}
	if err := l.adjust(30); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected growth rejection, got %v", err)
	}
	if err := l.adjust(-30); err != nil {
		t.Fatalf("shrink returned error: %v", err)
	}
	if err := l.adjust(40); err != nil {
		t.Fatalf("growth within limit returned error: %v", err)
	}
	if usage := l.usage(); usage.Files != 1 || usage.Bytes != 90 {
		t.Fatalf("unexpected usage after adjustments: %+v", usage)
	}
}

func TestLayerSetApplyKeepsAccounting(t *testing.T) {
	s := newLayerSet([]LayerPolicy{{Name: "a", MaxFiles: 1}})
	layer, err := s.get("a")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if err := layer.admit(10); err != nil {
		t.Fatalf("admit returned error: %v", err)
	}

	s.apply([]LayerPolicy{{Name: "a", MaxFiles: 5}, {Name: "b", MaxBytes: 7}})

	same, err := s.get("a")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if same != layer {
		t.Fatalf("expected policy update to keep the layer state")
	}
	if same.currentPolicy().MaxFiles != 5 {
		t.Fatalf("expected replaced policy, got %+v", same.currentPolicy())
	}
	if usage := s.usage(); usage["a"].Files != 1 || usage["a"].Bytes != 10 {
		t.Fatalf("expected accounting preserved, got %+v", usage)
	}

	if _, err := s.get("b"); err != nil {
		t.Fatalf("expected new layer reachable, got %v", err)
	}
	if _, err := s.get("missing"); !errors.Is(err, ErrInvalidLayer) {
		t.Fatalf("expected ErrInvalidLayer, got %v", err)
	}
}
