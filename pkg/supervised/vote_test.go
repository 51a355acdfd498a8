package supervised

import "testing"

func TestMajorityVote(t *testing.T) {
	tests := []struct {
		name  string
		preds [][]int
		want  int
	}{
		{"one of three", [][]int{{0}, {0}, {1}}, 0},
		{"two of three", [][]int{{1}, {1}, {0}}, 1},
		{"tie stays benign", [][]int{{1}, {0}}, 0},
		{"unanimous attack", [][]int{{1}, {1}, {1}}, 1},
		{"multiclass counts as attack", [][]int{{2}, {3}, {0}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MajorityVote(tt.preds)
			if got[0] != tt.want {
				t.Errorf("MajorityVote(%v) = %d, want %d", tt.preds, got[0], tt.want)
			}
		})
	}
}

func TestMajorityVoteEmpty(t *testing.T) {
	if got := MajorityVote(nil); got != nil {
		t.Errorf("expected nil for no models, got %v", got)
	}
}

func TestPluralityVote(t *testing.T) {
	tests := []struct {
		name  string
		preds [][]int
		want  int
	}{
		{"clear winner", [][]int{{2}, {2}, {1}}, 2},
		{"tie breaks low", [][]int{{1}, {2}, {0}}, 0},
		{"two way tie", [][]int{{3}, {1}, {3}, {1}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PluralityVote(tt.preds, 4)
			if got[0] != tt.want {
				t.Errorf("PluralityVote(%v) = %d, want %d", tt.preds, got[0], tt.want)
			}
		})
	}
}
