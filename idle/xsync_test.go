package idle

import (
	"testing"

	xsync "github.com/jezek/xgb/sync"
)

func TestInt64FromValue(t *testing.T) {
	cases := []struct {
		name string
		in   xsync.Int64
		want int64
	}{
		{"zero", xsync.Int64{Hi: 0, Lo: 0}, 0},
		{"small", xsync.Int64{Hi: 0, Lo: 120000}, 120000},
		{"past 32 bits", xsync.Int64{Hi: 1, Lo: 5}, 1<<32 + 5},
	}
	for _, tc := range cases {
		if got := int64FromValue(tc.in); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}
