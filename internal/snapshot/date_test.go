package snapshot

import (
	"testing"
	"time"
)

func TestDateForTruncatesToUTCMidnight(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "utc afternoon",
			in:   time.Date(2026, 7, 30, 14, 22, 5, 0, time.UTC),
			want: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-utc rolls to a different UTC day",
			in:   time.Date(2026, 7, 30, 23, 0, 0, 0, time.FixedZone("UTC-8", -8*3600)),
			want: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DateFor(tc.in)
			if !got.Equal(tc.want) {
				t.Errorf("DateFor(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("DateFor() location = %v, want UTC", got.Location())
			}
		})
	}
}
