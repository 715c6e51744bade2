package ir

// Journal records written by the engine and read back by trace.
// Seq values come from the engine's logical clock.

// TaskRecord is one applied task.
type TaskRecord struct {
	ID    string `json:"id"`
	Seq   int64  `json:"seq"`
	Kind  string `json:"kind"`
	Args  Object `json:"args"`
	Error string `json:"error,omitempty"`
}

// ContextRecord is the lifetime of one recall context.
type ContextRecord struct {
	RecallID    string `json:"recall_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Audio       string `json:"audio"`
	Orientation string `json:"orientation"`
	Scope       string `json:"scope"`
	Pad         int    `json:"pad"`
	StartedSeq  int64  `json:"started_seq"`
	StoppedSeq  int64  `json:"stopped_seq,omitempty"`
}

// Live reports whether the context has not been stopped.
func (r ContextRecord) Live() bool {
	return r.StoppedSeq == 0
}

// ResetRecord is one reset applied to a context's container.
type ResetRecord struct {
	Seq      int64  `json:"seq"`
	RecallID string `json:"recall_id"`
	Mode     string `json:"mode"`
	OldLen   int    `json:"old_len"`
	NewLen   int    `json:"new_len"`
	First    string `json:"first,omitempty"`
	Last     string `json:"last,omitempty"`
}
