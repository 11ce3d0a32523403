package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "refsync/pkg/domain-errors"
)

func TestKeys(t *testing.T) {
	remote := []string{"a", "b", "c", "b"}
	active := []string{"a", "d"}
	inactive := []string{"b", "e"}

	res := Keys(remote, active, inactive)

	assert.Equal(t, []string{"c"}, res.Added)
	assert.Equal(t, []string{"b"}, res.Reactivated)
	assert.Equal(t, []string{"a"}, res.Existing)
	assert.Equal(t, []string{"d"}, res.Inactivated)
}

func TestKeys_ActiveWinsOverInactive(t *testing.T) {
	res := Keys([]string{"a"}, []string{"a"}, []string{"a"})
	assert.Equal(t, []string{"a"}, res.Existing)
	assert.Empty(t, res.Reactivated)
}

func TestKeys_Empty(t *testing.T) {
	assert.True(t, Keys[string](nil, nil, []string{"x"}).Empty())
}

// TestKeys_Completeness checks that every remote key lands in exactly one
// bucket and every absent active key is inactivated.
func TestKeys_Completeness(t *testing.T) {
	cases := []struct {
		remote, active, inactive []int
	}{
		{[]int{1, 2, 3}, []int{2, 4}, []int{3, 5}},
		{nil, []int{1, 2}, nil},
		{[]int{1, 2}, nil, nil},
		{[]int{7}, []int{7}, []int{7}},
		{[]int{1, 1, 2}, []int{2, 2}, []int{1}},
	}
	for _, tc := range cases {
		res := Keys(tc.remote, tc.active, tc.inactive)

		counts := map[int]int{}
		for _, bucket := range [][]int{res.Added, res.Reactivated, res.Existing, res.Inactivated} {
			for _, k := range bucket {
				counts[k]++
			}
		}
		for k, n := range counts {
			assert.Equal(t, 1, n, "key %d appears in %d buckets", k, n)
		}
		for _, k := range tc.remote {
			assert.Contains(t, counts, k)
		}
		remoteSet := toSet(tc.remote)
		for _, k := range tc.active {
			if !contains(remoteSet, k) {
				assert.Contains(t, res.Inactivated, k)
			}
		}
	}
}

type row struct {
	id   string
	date time.Time
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMatch(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }

	active := []row{{"a1", day(2020, 1, 1)}, {"a2", day(2021, 1, 1)}}
	inactive := []row{{"i1", day(2019, 1, 1)}}
	remote := []time.Time{
		day(2021, 1, 1).Add(20 * time.Hour),
		day(2019, 1, 1),
		day(2022, 1, 1),
	}

	res, err := Match(remote, active, inactive, rank)
	require.NoError(t, err)

	require.Len(t, res.Existing, 1)
	assert.Equal(t, "a2", res.Existing[0].Local.id)
	require.Len(t, res.Reactivated, 1)
	assert.Equal(t, "i1", res.Reactivated[0].Local.id)
	assert.Equal(t, []time.Time{day(2022, 1, 1)}, res.Added)
	require.Len(t, res.Inactivated, 1)
	assert.Equal(t, "a1", res.Inactivated[0].id)
}

func TestMatch_AmbiguousActiveRows(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }
	active := []row{{"a", day(2020, 1, 1)}, {"b", day(2020, 1, 1)}}

	_, err := Match([]time.Time{day(2020, 1, 1)}, active, nil, rank)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestMatch_InactiveRowRevivedOnce(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }
	inactive := []row{{"i", day(2020, 1, 1)}}
	remote := []time.Time{day(2020, 1, 1), day(2020, 1, 2)}

	res, err := Match(remote, nil, inactive, rank)
	require.NoError(t, err)
	assert.Len(t, res.Reactivated, 1)
	assert.Len(t, res.Added, 1)
}

func TestMatch_SameDayOutranksNextDay(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }
	active := []row{{"d", day(2023, 1, 30)}, {"d+1", day(2023, 1, 31)}}
	// Remote order puts the later version first so it cannot grab row "d".
	remote := []time.Time{day(2023, 1, 31), day(2023, 1, 30)}

	res, err := Match(remote, active, nil, rank)
	require.NoError(t, err)
	require.Len(t, res.Existing, 2)
	for _, p := range res.Existing {
		assert.True(t, p.Local.date.Equal(p.Remote), "paired %s with %s", p.Local.id, p.Remote)
	}
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Inactivated)
}

func TestMatch_ClaimedRowIsNotPairedAgain(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }
	active := []row{{"d", day(2023, 1, 30)}}
	remote := []time.Time{day(2023, 1, 31), day(2023, 1, 30)}

	res, err := Match(remote, active, nil, rank)
	require.NoError(t, err)
	require.Len(t, res.Existing, 1)
	assert.Equal(t, day(2023, 1, 30), res.Existing[0].Remote)
	assert.Equal(t, []time.Time{day(2023, 1, 31)}, res.Added)
}

func TestMatch_NextDayToleranceStillPairs(t *testing.T) {
	rank := func(l row, r time.Time) int { return VersionDateRank(l.date, r) }
	active := []row{{"d", day(2023, 1, 30)}}

	res, err := Match([]time.Time{day(2023, 1, 31).Add(2 * time.Hour)}, active, nil, rank)
	require.NoError(t, err)
	require.Len(t, res.Existing, 1)
	assert.Empty(t, res.Added)
}
