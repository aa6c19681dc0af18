package models

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message string `json:"message"`
	// CorpusIDs selects which corpora ground the answer. Empty means the
	// default corpus only.
	CorpusIDs []string `json:"corpus_ids,omitempty"`
	Stream    bool     `json:"stream,omitempty"`
}

// ChatResponse is the buffered chat answer.
type ChatResponse struct {
	Response string `json:"response"`
}

// DocumentRef identifies one successfully uploaded document and the corpus it became.
type DocumentRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// SkippedFile reports an upload that was not indexed and why.
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// UploadResponse is the result of a multi-file upload. Skipped files never
// fail the batch; they are reported here instead.
type UploadResponse struct {
	Documents []DocumentRef `json:"documents"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
}

// DeleteResponse reports whether a corpus was removed.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse summarizes the live state of the service.
type StatusResponse struct {
	Status  string `json:"status"`
	Corpora int    `json:"corpora"`
	Chunks  int    `json:"chunks"`
}
