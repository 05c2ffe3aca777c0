package service

import (
	"fmt"

	"github.com/sakif/piecemeal/internal/apperror"
)

// AbsoluteDistribution marks a source whose quota is the engine's
// per-friend limit rather than a percentage of the overall limit.
const AbsoluteDistribution = -1

// Distribute turns an overall limit into one quota per source.
//
// With no distributions the limit is split evenly and the remainder goes to
// the first sources, so 10 over 3 sources is 4/3/3. Otherwise each value is
// either a percentage of limit or AbsoluteDistribution, which means exactly
// perFriend items. Percentages are floored; the items lost to flooring go
// one each to the first percentage sources until the percentage quotas add
// up to floor(sum(pct) * limit / 100).
func Distribute(limit, n int, distributions []int, perFriend int) ([]int, error) {
	if limit < 0 {
		return nil, apperror.InvalidArgument("limit", "expected limit >= 0")
	}
	if n < 0 {
		return nil, apperror.InvalidArgument("sources", "expected at least zero sources")
	}
	quotas := make([]int, n)
	if n == 0 {
		return quotas, nil
	}

	if len(distributions) == 0 {
		for i := range quotas {
			quotas[i] = limit / n
			if i < limit%n {
				quotas[i]++
			}
		}
		return quotas, nil
	}

	if len(distributions) != n {
		return nil, apperror.InvalidArgument("distributions",
			fmt.Sprintf("expected %d distributions, got %d", n, len(distributions)))
	}

	pctSum := 0
	var pctIdx []int
	for i, d := range distributions {
		switch {
		case d == AbsoluteDistribution:
			quotas[i] = perFriend
		case d < AbsoluteDistribution || d > 100:
			return nil, apperror.InvalidArgument("distributions",
				fmt.Sprintf("distribution %d is not a percentage or -1", d))
		default:
			quotas[i] = d * limit / 100
			pctSum += d
			pctIdx = append(pctIdx, i)
		}
	}
	if pctSum > 100 {
		return nil, apperror.InvalidArgument("distributions", "percentages add up to more than 100")
	}

	target := pctSum * limit / 100
	assigned := 0
	for _, i := range pctIdx {
		assigned += quotas[i]
	}
	for k := 0; assigned < target; k++ {
		quotas[pctIdx[k%len(pctIdx)]]++
		assigned++
	}
	return quotas, nil
}
