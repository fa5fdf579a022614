package model

// RetrievalState is the single observable state of the listing retriever.
// Result is set only when Status is StatusLoaded; Err only when StatusFailed.
type RetrievalState struct {
	Status Status
	Result *PageResult
	Err    ErrorKind
	// Page is the page most recently requested, including one still loading.
	Page int
}

// IdleState returns the initial retrieval state.
func IdleState() RetrievalState {
	return RetrievalState{Status: StatusIdle}
}
