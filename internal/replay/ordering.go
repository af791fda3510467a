package replay

import (
	"sort"

	"tradegate/internal/domain"
)

// SortSnapshots orders snapshots by (timestamp ASC, instrument ASC, timeframe ASC).
func SortSnapshots(snaps []*domain.IndicatorSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return compareSnapshots(snaps[i], snaps[j]) < 0
	})
}

// GroupFrames sorts snaps and splits them into frames of equal timestamp.
func GroupFrames(snaps []*domain.IndicatorSnapshot) []*Frame {
	SortSnapshots(snaps)

	var frames []*Frame
	for _, s := range snaps {
		if n := len(frames); n == 0 || frames[n-1].Timestamp != s.Timestamp {
			frames = append(frames, &Frame{Timestamp: s.Timestamp})
		}
		last := frames[len(frames)-1]
		last.Snapshots = append(last.Snapshots, s)
	}
	return frames
}

func compareSnapshots(a, b *domain.IndicatorSnapshot) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Instrument != b.Instrument {
		if a.Instrument < b.Instrument {
			return -1
		}
		return 1
	}
	if a.Timeframe != b.Timeframe {
		if a.Timeframe < b.Timeframe {
			return -1
		}
		return 1
	}
	return 0
}
