package partition

import "time"

// Match strengths returned by VersionDateRank. Lower ranks win.
const (
	NoMatch = iota
	SameDay
	NextDay
)

// VersionDateRank grades how closely a remote version timestamp matches a
// local version date. The remote side may be stamped anywhere within the local
// day or the day after it, which absorbs timezone and DST skew between the
// two systems; a same-day match always outranks the next-day tolerance.
func VersionDateRank(local, remote time.Time) int {
	if local.Equal(remote) {
		return SameDay
	}
	day := StartOfDay(local)
	remoteDay := StartOfDay(remote.In(local.Location()))
	switch {
	case remoteDay.Equal(day):
		return SameDay
	case remoteDay.Equal(day.AddDate(0, 0, 1)):
		return NextDay
	default:
		return NoMatch
	}
}

// SameVersionDate reports whether a local version date and a remote version
// timestamp denote the same published version at any rank.
func SameVersionDate(local, remote time.Time) bool {
	return VersionDateRank(local, remote) != NoMatch
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
