package builder

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/qiita"
)

func TestQualifyThresholds(t *testing.T) {
	in := []qiita.Article{
		{ID: "a", LikesCount: 50, StocksCount: 0},
		{ID: "b", LikesCount: 49, StocksCount: 100},
		{ID: "c", LikesCount: 80, StocksCount: 5},
	}
	got := Qualify(in, 50, 0, 0)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("unexpected likes filter: %+v", got)
	}
	got = Qualify(in, 50, 5, 0)
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("unexpected stocks filter: %+v", got)
	}
}

func TestQualifyTopPercent(t *testing.T) {
	var in []qiita.Article
	for i := 1; i <= 10; i++ {
		in = append(in, qiita.Article{ID: string(rune('a' + i - 1)), LikesCount: i * 10})
	}
	// The 0.9 quantile of 10..100 is 91, so only the 100-like article stays.
	got := Qualify(in, 0, 0, 0.1)
	if len(got) != 1 || got[0].LikesCount != 100 {
		t.Errorf("expected only the top article, got %+v", got)
	}
	if got := Qualify(nil, 0, 0, 0.1); len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}
