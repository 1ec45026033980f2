package repository

import (
	"testing"
)

func TestNormalizeDatasetWindowBounds(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		offset int
		want   datasetWindow
	}{
		{name: "defaults when zero", limit: 0, offset: 0, want: datasetWindow{Limit: DefaultDatasetLimit, Offset: 0}},
		{name: "limit floored", limit: -5, offset: 10, want: datasetWindow{Limit: DefaultDatasetLimit, Offset: 10}},
		{name: "offset floored", limit: 10, offset: -1, want: datasetWindow{Limit: 10, Offset: 0}},
		{name: "limit capped", limit: MaxDatasetLimit + 50, offset: 2, want: datasetWindow{Limit: MaxDatasetLimit, Offset: 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeDatasetWindow(tc.limit, tc.offset)
			if got != tc.want {
				t.Fatalf("normalizeDatasetWindow(%d, %d) = %+v, want %+v", tc.limit, tc.offset, got, tc.want)
			}
		})
	}
}

func FuzzNormalizeDatasetWindowInvariants(f *testing.F) {
	f.Add(0, 0)
	f.Add(-1, -1)
	f.Add(1, 1)
	f.Add(MaxDatasetLimit+50, 10)
	f.Add(9999999, 9999999)

	f.Fuzz(func(t *testing.T, limit, offset int) {
		got := normalizeDatasetWindow(limit, offset)
		if got.Limit < 1 || got.Limit > MaxDatasetLimit {
			t.Fatalf("limit out of bounds: %d", got.Limit)
		}
		if got.Offset < 0 {
			t.Fatalf("offset must be non-negative, got %d", got.Offset)
		}

		again := normalizeDatasetWindow(limit, offset)
		if got != again {
			t.Fatalf("normalizeDatasetWindow must be deterministic: first=%+v second=%+v", got, again)
		}
	})
}
