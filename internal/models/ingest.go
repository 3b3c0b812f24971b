package models

// File is one uploaded file. ReadErr is set when the upload could not be read.
type File struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
	ReadErr error  `json:"-"`
}

// Outcome statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// Failure kinds reported per file.
const (
	KindRead         = "read"
	KindExtraction   = "extraction"
	KindEmptyContent = "empty_content"
	KindEmbedding    = "embedding"
	KindIndex        = "index"
)

// Report statuses.
const (
	ReportOK      = "ok"
	ReportPartial = "partial"
	ReportFailed  = "failed"
	ReportAborted = "aborted"
)

// Outcome is the result of ingesting a single file.
type Outcome struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Succeeded reports whether the file was stored.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// IngestReport lists per-file outcomes in input order.
type IngestReport struct {
	Status    string    `json:"status"`
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Aborted   int       `json:"aborted,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Finalize counts outcomes and derives the overall status.
func (r *IngestReport) Finalize() {
	r.Succeeded, r.Failed, r.Aborted = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusFailed:
			r.Failed++
		case StatusAborted:
			r.Aborted++
		}
	}
	switch {
	case r.Error != "":
		r.Status = ReportAborted
	case r.Failed == 0:
		r.Status = ReportOK
	case r.Succeeded == 0:
		r.Status = ReportFailed
	default:
		r.Status = ReportPartial
	}
}
