package core

// KVCacheKind distinguishes the Key and Value tensors of a PIM KV cache,
// which use distinct layouts.
type KVCacheKind int

const (
	KVCacheKey KVCacheKind = iota
	KVCacheValue
)

// InferRequest models one inference request's lifecycle: created by the
// request generator, mutated by the scheduler (IsInitiated, Generated) and
// by the attention operation (AddToken on the caches), destroyed when
// Generated == OutputSize.
type InferRequest struct {
	ID         string
	InputSize  uint32 // prompt token count
	OutputSize uint32 // target generated tokens
	Generated  uint32 // tokens produced so far
	IsInitiated bool  // prefill completed

	Channel uint64 // the PIM channel bound to this request's K/V tensors

	// KCache[layer] and VCache[layer] hold the request's per-layer caches.
	// Nothing in this package assigns them; StageProgram.QKVGenBlock only
	// reads them through BatchedRequest.Cache.
	KCache []*PimTensor
	VCache []*PimTensor
}

// NewInferRequest constructs a request with per-layer cache slices sized for
// nLayer transformer layers, every entry nil.
func NewInferRequest(id string, inputSize, outputSize uint32, channel uint64, nLayer uint32) *InferRequest {
	return &InferRequest{
		ID:         id,
		InputSize:  inputSize,
		OutputSize: outputSize,
		Channel:    channel,
		KCache:     make([]*PimTensor, nLayer),
		VCache:     make([]*PimTensor, nLayer),
	}
}

// Done reports whether this request has produced all its output tokens.
func (r *InferRequest) Done() bool {
	return r.Generated >= r.OutputSize
}

// BatchedRequest is an ordered, immutable-after-construction list of
// InferRequest handles forming a sub-batch.
type BatchedRequest struct {
	reqs []*InferRequest
}

// NewBatchedRequest constructs a sub-batch from the given requests.
func NewBatchedRequest(reqs []*InferRequest) *BatchedRequest {
	cp := make([]*InferRequest, len(reqs))
	copy(cp, reqs)
	return &BatchedRequest{reqs: cp}
}

// NumReqs returns the number of requests in the sub-batch.
func (b *BatchedRequest) NumReqs() int {
	return len(b.reqs)
}

// Request returns the i-th request handle.
func (b *BatchedRequest) Request(i int) *InferRequest {
	return b.reqs[i]
}

// Requests returns the underlying request slice. Callers must not mutate it;
// BatchedRequest is immutable after construction.
func (b *BatchedRequest) Requests() []*InferRequest {
	return b.reqs
}

// NumRows returns Σᵢ (is_initiatedᵢ ? 1 : input_sizeᵢ): one row per decode
// request already past prefill, input_size rows for each prefill request.
func (b *BatchedRequest) NumRows() uint32 {
	var total uint32
	for _, r := range b.reqs {
		if r.IsInitiated {
			total++
		} else {
			total += r.InputSize
		}
	}
	return total
}

// NumRowsBreakdown returns the per-request contribution to NumRows, in the
// same order as the batch.
func (b *BatchedRequest) NumRowsBreakdown() []uint32 {
	out := make([]uint32, len(b.reqs))
	for i, r := range b.reqs {
		if r.IsInitiated {
			out[i] = 1
		} else {
			out[i] = r.InputSize
		}
	}
	return out
}

// IsInitiated reports whether the request at index is past prefill.
func (b *BatchedRequest) IsInitiated(index int) bool {
	return b.reqs[index].IsInitiated
}

// Cache returns the (Key, Value) PimTensor pair for the given layer and
// request index.
func (b *BatchedRequest) Cache(layer uint32, index int) (*PimTensor, *PimTensor) {
	r := b.reqs[index]
	return r.KCache[layer], r.VCache[layer]
}
