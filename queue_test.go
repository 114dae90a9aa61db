package ft2engine

import "testing"

func TestSPSCRingRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := newSPSCRing[int](5)
	if len(q.buf) != 8 {
		t.Errorf("capacity = %d, want 8", len(q.buf))
	}
}

func TestSPSCRingPushPopOrder(t *testing.T) {
	q := newSPSCRing[int](4)
	for i := 0; i < 4; i++ {
		if !q.TryPush(i) {
			t.Fatalf("TryPush(%d) failed, ring should not be full yet", i)
		}
	}
	if q.TryPush(99) {
		t.Fatal("TryPush succeeded on a full ring")
	}

	for i := 0; i < 4; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop succeeded on an empty ring")
	}
}

func TestSPSCRingWrapsAroundCorrectly(t *testing.T) {
	q := newSPSCRing[int](4)
	for i := 0; i < 3; i++ {
		q.TryPush(i)
	}
	q.TryPop()
	q.TryPop()
	q.TryPush(10)
	q.TryPush(11)
	q.TryPush(12)

	var got []int
	for {
		v, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []int{2, 10, 11, 12}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSPSCRingLenTracksQueuedItems(t *testing.T) {
	q := newSPSCRing[int](8)
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
	q.TryPush(1)
	q.TryPush(2)
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	q.TryPop()
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}
