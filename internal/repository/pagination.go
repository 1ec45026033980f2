package repository

const (
	DefaultDatasetLimit = 100
	MaxDatasetLimit     = 1000
)

type datasetWindow struct {
	Limit  int
	Offset int
}

func normalizeDatasetWindow(limit, offset int) datasetWindow {
	if limit <= 0 {
		limit = DefaultDatasetLimit
	}
	if limit > MaxDatasetLimit {
		limit = MaxDatasetLimit
	}
	if offset < 0 {
		offset = 0
	}
	return datasetWindow{Limit: limit, Offset: offset}
}
