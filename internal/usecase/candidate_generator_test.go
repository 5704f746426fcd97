package usecase

import (
	"math"
	"testing"

	"github.com/gptlisting/backend/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreCandidate(t *testing.T) {
	g := NewCandidateGenerator(domain.DefaultThresholds(), false)

	front := row("https://cdn.example.com/20240101_001.jpg", domain.RoleFront, "Acme", []string{"citrus", "soap"}, []string{"lemon"})

	tests := []struct {
		name  string
		other domain.FeatureRow
		want  float64
	}{
		{
			name:  "full agreement",
			other: row("https://cdn.example.com/20240101_002.jpg", domain.RoleBack, "Acme", []string{"citrus", "soap"}, []string{"lemon"}),
			want:  3.0 + 2.0 + 1.0 + 0.5,
		},
		{
			name:  "brand only",
			other: row("https://cdn.example.com/x/other.jpeg", domain.RoleBack, "acme", nil, nil),
			want:  3.0,
		},
		{
			name:  "tokens only",
			other: row("https://cdn.example.com/x/other.jpeg", domain.RoleBack, "Rival", []string{"citrus", "soap"}, []string{"lemon"}),
			want:  2.0 + 1.0,
		},
		{
			name:  "partial product overlap",
			other: row("https://cdn.example.com/x/other.jpeg", domain.RoleBack, "", []string{"citrus", "rack"}, nil),
			want:  2.0 * (1.0 / 3.0),
		},
		{
			name:  "empty brands never match",
			other: row("https://cdn.example.com/x/other.jpeg", domain.RoleBack, "", nil, nil),
			want:  0,
		},
		{
			name:  "proximity needs a full prefix",
			other: row("https://cdn.example.com/x/01.jpg", domain.RoleBack, "", nil, nil),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.scoreCandidate(front, tt.other)
			if !almostEqual(got, tt.want) {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("empty-brand front gets no brand signal", func(t *testing.T) {
		anonFront := row("https://cdn.example.com/a.jpg", domain.RoleFront, "", []string{"citrus"}, nil)
		other := row("https://cdn.example.com/b.jpg", domain.RoleBack, "", []string{"citrus"}, nil)
		got := g.scoreCandidate(anonFront, other)
		if !almostEqual(got, 2.0) {
			t.Errorf("score = %v, want token overlap only", got)
		}
	})
}

func TestGenerate(t *testing.T) {
	g := NewCandidateGenerator(domain.DefaultThresholds(), false)

	t.Run("prunes below MinPreScore", func(t *testing.T) {
		rows := []domain.FeatureRow{
			row("https://cdn.example.com/f.jpg", domain.RoleFront, "Acme", []string{"citrus", "soap"}, nil),
			row("https://cdn.example.com/weak.jpg", domain.RoleBack, "", []string{"citrus", "rack", "wood"}, nil),
		}
		// Overlap 1/4 gives 0.5: below the 1.0 pre-score floor
		got := g.Generate(rows)
		if len(got) != 1 {
			t.Fatalf("fronts = %d, want 1", len(got))
		}
		if len(got[0].Candidates) != 0 {
			t.Errorf("candidates = %v, want pruned empty", got[0].Candidates)
		}
	})

	t.Run("fronts ordered by url", func(t *testing.T) {
		rows := []domain.FeatureRow{
			row("https://cdn.example.com/z_front.jpg", domain.RoleFront, "Acme", nil, nil),
			row("https://cdn.example.com/a_front.jpg", domain.RoleFront, "Bolt", nil, nil),
			row("https://cdn.example.com/m_front.jpg", domain.RoleFront, "Curio", nil, nil),
		}
		got := g.Generate(rows)
		if len(got) != 3 {
			t.Fatalf("fronts = %d, want 3", len(got))
		}
		urls := []string{got[0].Front.URL, got[1].Front.URL, got[2].Front.URL}
		want := []string{
			"https://cdn.example.com/a_front.jpg",
			"https://cdn.example.com/m_front.jpg",
			"https://cdn.example.com/z_front.jpg",
		}
		for i := range want {
			if urls[i] != want[i] {
				t.Errorf("front[%d] = %s, want %s", i, urls[i], want[i])
			}
		}
	})

	t.Run("candidates sorted by score then url", func(t *testing.T) {
		rows := []domain.FeatureRow{
			row("https://cdn.example.com/20240101_001.jpg", domain.RoleFront, "Acme", []string{"citrus"}, nil),
			row("https://cdn.example.com/x/b_weakest.jpg", domain.RoleBack, "Acme", nil, nil),
			row("https://cdn.example.com/20240101_002.jpg", domain.RoleBack, "Acme", []string{"citrus"}, nil),
			row("https://cdn.example.com/x/a_tied.jpg", domain.RoleOther, "Acme", nil, nil),
		}
		got := g.Generate(rows)
		if len(got) != 1 {
			t.Fatalf("fronts = %d, want 1", len(got))
		}
		cands := got[0].Candidates
		if len(cands) != 3 {
			t.Fatalf("candidates = %d, want 3", len(cands))
		}
		if cands[0].BackURL != "https://cdn.example.com/20240101_002.jpg" {
			t.Errorf("best = %s, want the full-overlap back", cands[0].BackURL)
		}
		// Equal scores break ties by URL
		if cands[1].BackURL != "https://cdn.example.com/x/a_tied.jpg" || cands[2].BackURL != "https://cdn.example.com/x/b_weakest.jpg" {
			t.Errorf("tie order = %s, %s; want URL ascending", cands[1].BackURL, cands[2].BackURL)
		}
	})

	t.Run("fronts are never candidates", func(t *testing.T) {
		rows := []domain.FeatureRow{
			row("https://cdn.example.com/20240101_001.jpg", domain.RoleFront, "Acme", []string{"citrus"}, nil),
			row("https://cdn.example.com/20240101_002.jpg", domain.RoleFront, "Acme", []string{"citrus"}, nil),
		}
		got := g.Generate(rows)
		for _, fc := range got {
			if len(fc.Candidates) != 0 {
				t.Errorf("front %s has candidates %v, want none", fc.Front.URL, fc.Candidates)
			}
		}
	})
}

func TestCapturePrefix(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/20240101_143501.jpg", "20240101_"},
		{"https://cdn.example.com/a/b/20240101_1.jpg", "20240101_"},
		{"https://cdn.example.com/x.jpg", ""},
		{"20240101_local.jpg", "20240101_"},
		{"short", ""},
	}

	for _, tt := range tests {
		if got := capturePrefix(tt.url); got != tt.want {
			t.Errorf("capturePrefix(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1.0},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"partial", []string{"a", "b", "c"}, []string{"a", "d"}, 0.25},
		{"case insensitive", []string{"Lemon"}, []string{"lemon"}, 1.0},
		{"left empty", nil, []string{"a"}, 0},
		{"right empty", []string{"a"}, nil, 0},
		{"duplicates counted once", []string{"a", "a"}, []string{"a", "a"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenOverlap(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("tokenOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}
