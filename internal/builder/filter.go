package builder

import (
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/qiita"
)

// Qualify keeps articles with at least minLikes likes and minStocks stocks.
// When topPercent is above zero, only those whose likes reach the
// (1 - topPercent) quantile of the qualifying set remain.
func Qualify(articles []qiita.Article, minLikes, minStocks int, topPercent float64) []qiita.Article {
	out := make([]qiita.Article, 0, len(articles))
	for _, a := range articles {
		if a.LikesCount >= minLikes && a.StocksCount >= minStocks {
			out = append(out, a)
		}
	}
	if topPercent <= 0 || len(out) == 0 {
		return out
	}

	likes := make([]int, len(out))
	for i, a := range out {
		likes[i] = a.LikesCount
	}
	threshold := analysis.Quantile(likes, 1-topPercent)
	top := out[:0]
	for _, a := range out {
		if float64(a.LikesCount) >= threshold {
			top = append(top, a)
		}
	}
	return top
}
