package stats

import "testing"

func TestRingBufferFIFOEviction(t *testing.T) {
	b := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	if b.Len() != 3 {
		t.Fatalf("Len got %d, want 3", b.Len())
	}
	got := b.ToSlice()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToSlice[%d] got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRingBufferPartialFill(t *testing.T) {
	b := NewRingBuffer[float64](10)
	b.Push(1.5)
	b.Push(2.5)

	if b.Len() != 2 {
		t.Fatalf("Len got %d, want 2", b.Len())
	}
	if b.Cap() != 10 {
		t.Fatalf("Cap got %d, want 10", b.Cap())
	}
	got := b.ToSlice()
	if len(got) != 2 || got[0] != 1.5 || got[1] != 2.5 {
		t.Errorf("ToSlice got %v, want [1.5 2.5]", got)
	}
}

func TestRingBufferLast(t *testing.T) {
	b := NewRingBuffer[string](2)
	if _, ok := b.Last(); ok {
		t.Fatal("Last on empty buffer reported ok")
	}
	b.Push("a")
	b.Push("b")
	b.Push("c")
	last, ok := b.Last()
	if !ok || last != "c" {
		t.Errorf("Last got %q/%v, want \"c\"/true", last, ok)
	}
}

func TestRingBufferNeverExceedsCapacity(t *testing.T) {
	b := NewRingBuffer[int](7)
	for i := 0; i < 1000; i++ {
		b.Push(i)
		if b.Len() > b.Cap() {
			t.Fatalf("Len %d exceeded Cap %d after push %d", b.Len(), b.Cap(), i)
		}
	}
	got := b.ToSlice()
	if len(got) != 7 || got[0] != 993 || got[6] != 999 {
		t.Errorf("ToSlice got %v, want [993..999]", got)
	}
}
