package measplot

import (
	"reflect"
	"strconv"
	"testing"
)

func TestFilter(t *testing.T) {
	t.Run("empty slice", func(t *testing.T) {
		var input []int = nil
		got := Filter(input, func(int) bool { return true })
		if !reflect.DeepEqual(got, []int{}) {
			t.Fatalf("Filter(%v) = %v, want []", input, got)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		got := Filter([]int{1, 2, 3}, func(x int) bool { return x > 10 })
		if len(got) != 0 {
			t.Fatalf("Filter = %v, want []", got)
		}
	})

	t.Run("keeps order", func(t *testing.T) {
		got := Filter([]int{5, 2, 8, 1, 6}, func(x int) bool { return x%2 == 0 })
		want := []int{2, 8, 6}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter = %v, want %v", got, want)
		}
	})
}

func TestMap(t *testing.T) {
	got := Map([]int{1, 20, 300}, strconv.Itoa)
	want := []string{"1", "20", "300"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Map = %v, want %v", got, want)
	}

	if got := Map([]int(nil), strconv.Itoa); len(got) != 0 {
		t.Fatalf("Map(nil) = %v, want []", got)
	}
}

func TestMax(t *testing.T) {
	if got := Max(3, 7); got != 7 {
		t.Fatalf("Max(3, 7) = %v", got)
	}
	if got := Max(-1.5, -2.5); got != -1.5 {
		t.Fatalf("Max(-1.5, -2.5) = %v", got)
	}
}

func TestRing(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := NewRing[int](3)
		if r.Len() != 0 {
			t.Fatalf("Len = %d, want 0", r.Len())
		}
		if _, ok := r.Latest(); ok {
			t.Fatalf("Latest on empty ring reported a value")
		}
		if got := r.ReadAllOrdered(); len(got) != 0 {
			t.Fatalf("ReadAllOrdered = %v, want []", got)
		}
	})

	t.Run("partially filled", func(t *testing.T) {
		r := NewRing[int](3)
		r.Push(1)
		r.Push(2)
		if r.Len() != 2 {
			t.Fatalf("Len = %d, want 2", r.Len())
		}
		if got := r.ReadAllOrdered(); !reflect.DeepEqual(got, []int{1, 2}) {
			t.Fatalf("ReadAllOrdered = %v", got)
		}
		if v, ok := r.Latest(); !ok || v != 2 {
			t.Fatalf("Latest = %v, %v", v, ok)
		}
	})

	t.Run("wraps around", func(t *testing.T) {
		r := NewRing[int](3)
		for i := 1; i <= 5; i++ {
			r.Push(i)
		}
		if r.Len() != 3 {
			t.Fatalf("Len = %d, want 3", r.Len())
		}
		if got := r.ReadAllOrdered(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
			t.Fatalf("ReadAllOrdered = %v", got)
		}
		if v, _ := r.Latest(); v != 5 {
			t.Fatalf("Latest = %v, want 5", v)
		}
	})

	t.Run("latest at end of buffer", func(t *testing.T) {
		r := NewRing[int](2)
		r.Push(1)
		r.Push(2)
		if v, _ := r.Latest(); v != 2 {
			t.Fatalf("Latest = %v, want 2", v)
		}
	})

	t.Run("ordered copy", func(t *testing.T) {
		r := NewRing[int](2)
		r.Push(1)
		got := r.ReadAllOrdered()
		got[0] = 42
		if v, _ := r.Latest(); v != 1 {
			t.Fatalf("ring modified through returned slice")
		}
	})

	t.Run("zero capacity panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic")
			}
		}()
		NewRing[int](0)
	})
}
