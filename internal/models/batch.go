package models

// BatchFailure reports why one batch item failed. CardID or Query is set
// when the item has one, Index always points back into the input list.
type BatchFailure struct {
	Index  int    `json:"index"`
	CardID *int64 `json:"card_id,omitempty"`
	Query  string `json:"query,omitempty"`
	Error  string `json:"error"`
}

// BatchResult splits batch output into per-item successes and failures,
// each in input order. Both slices are always non-nil.
type BatchResult[T any] struct {
	Successful []T            `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

// NewBatchResult returns an empty result sized for n items.
func NewBatchResult[T any](n int) BatchResult[T] {
	return BatchResult[T]{
		Successful: make([]T, 0, n),
		Failed:     []BatchFailure{},
	}
}

// Succeed records a successful item.
func (b *BatchResult[T]) Succeed(v T) {
	b.Successful = append(b.Successful, v)
}

// Fail records a failed item.
func (b *BatchResult[T]) Fail(f BatchFailure) {
	b.Failed = append(b.Failed, f)
}

// CreatedCard is the per-item output of a batch create.
type CreatedCard struct {
	Index  int   `json:"index"`
	CardID int64 `json:"card_id"`
}
