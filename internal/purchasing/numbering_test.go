package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticNumberSource struct {
	latest string
}

func (s staticNumberSource) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	return s.latest, nil
}

func TestNumberGenerator(t *testing.T) {
	jan := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		latest string
		at     time.Time
		want   string
	}{
		{"first of month", "", jan, "PO-202401-0001"},
		{"increments latest", "PO-202401-0002", jan, "PO-202401-0003"},
		{"counter resets with new month", "", feb, "PO-202402-0001"},
		{"crosses four digits", "PO-202401-9999", jan, "PO-202401-10000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewNumberGenerator(staticNumberSource{latest: tc.latest})
			got, err := gen.Next(context.Background(), tc.at)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
