package core

import "testing"

func TestBatchedRequest_NumRows_SumsInitiatedAsOneElseInputSize(t *testing.T) {
	// GIVEN a batch of one decode request (initiated) and one prefill request
	decode := NewInferRequest("r1", 10, 5, 0, 2)
	decode.IsInitiated = true
	prefill := NewInferRequest("r2", 7, 5, 1, 2)
	prefill.IsInitiated = false

	batch := NewBatchedRequest([]*InferRequest{decode, prefill})

	// WHEN computing NumRows
	got := batch.NumRows()

	// THEN it is 1 (decode) + 7 (prefill's input_size)
	if want := uint32(8); got != want {
		t.Errorf("NumRows() = %d, want %d", got, want)
	}
}

func TestBatchedRequest_NumRowsBreakdown_MatchesPerRequestContribution(t *testing.T) {
	decode := NewInferRequest("r1", 10, 5, 0, 2)
	decode.IsInitiated = true
	prefill := NewInferRequest("r2", 7, 5, 1, 2)

	batch := NewBatchedRequest([]*InferRequest{decode, prefill})
	got := batch.NumRowsBreakdown()

	want := []uint32{1, 7}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("NumRowsBreakdown() = %v, want %v", got, want)
	}
}

func TestBatchedRequest_Requests_IsDefensivelyCopied(t *testing.T) {
	// GIVEN a request slice used to build a batch
	reqs := []*InferRequest{NewInferRequest("r1", 1, 1, 0, 1)}
	batch := NewBatchedRequest(reqs)

	// WHEN the original slice is mutated after construction
	reqs[0] = NewInferRequest("r2", 2, 2, 0, 1)

	// THEN the batch's view is unaffected
	if batch.Request(0).ID != "r1" {
		t.Errorf("batch.Request(0).ID = %s, want r1 (batch should be immutable after construction)", batch.Request(0).ID)
	}
}

func TestInferRequest_Done_WhenGeneratedReachesOutputSize(t *testing.T) {
	r := NewInferRequest("r1", 4, 2, 0, 1)
	if r.Done() {
		t.Fatal("fresh request should not be Done()")
	}
	r.Generated = 2
	if !r.Done() {
		t.Error("expected Done() once Generated == OutputSize")
	}
}
