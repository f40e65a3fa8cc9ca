package recommend

import (
	"reflect"
	"testing"
)

func indexes(ns []Neighbor) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.Index
	}
	return out
}

func TestRank_StableDescending(t *testing.T) {
	got := Rank([]float32{0.5, 1, 0.5, 0.9, 0.5})
	want := []int{1, 3, 0, 2, 4}
	if !reflect.DeepEqual(indexes(got), want) {
		t.Errorf("Rank order=%v, want %v", indexes(got), want)
	}
}

func TestTopK(t *testing.T) {
	ranked := Rank([]float32{1, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3})
	tests := []struct {
		name string
		self int
		k    int
		skip func(Neighbor) bool
		want []int
	}{
		{"drops self at top", 0, 5, nil, []int{1, 2, 3, 4, 5}},
		{"self not at top still excluded", 3, 5, nil, []int{0, 1, 2, 4, 5}},
		{"k larger than catalog", 0, 20, nil, []int{1, 2, 3, 4, 5, 6, 7}},
		{"skip predicate", 0, 3, func(n Neighbor) bool { return n.Index%2 == 0 }, []int{1, 3, 5}},
		{"zero k", 0, 0, nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indexes(TopK(ranked, tt.self, tt.k, tt.skip))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopK=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestRank_Idempotent(t *testing.T) {
	row := []float32{0.3, 0.3, 1, 0.2, 0.3}
	first := Rank(row)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(Rank(row), first) {
			t.Fatal("Rank is not deterministic")
		}
	}
}
