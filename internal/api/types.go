package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the body of POST /api/download.
type SubmitRequest struct {
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	Quality   string `json:"quality,omitempty"`
	AudioOnly bool   `json:"audioOnly,omitempty"`
	UseProxy  bool   `json:"useProxy,omitempty"`
	ProxyURL  string `json:"proxyUrl,omitempty"`
	// OutputDir must resolve inside the daemon's download directory; relative
	// paths are taken from there.
	OutputDir string `json:"outputDir,omitempty"`
	Verbose   bool   `json:"verbose,omitempty"`
}

// SubmitResponse acknowledges an accepted download.
type SubmitResponse struct {
	DownloadID string `json:"download_id"`
	Message    string `json:"message"`
}

// JobStatus describes a job in a transport-friendly format.
type JobStatus struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	State           string  `json:"state"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	Indeterminate   bool    `json:"indeterminate,omitempty"`
	Error           string  `json:"error,omitempty"`
	ErrorCode       string  `json:"error_code,omitempty"`
	OutputPath      string  `json:"output_path,omitempty"`
	Title           string  `json:"title,omitempty"`
	Collection      bool    `json:"collection,omitempty"`
	ItemIndex       int     `json:"item_index,omitempty"`
	ItemCount       int     `json:"item_count,omitempty"`
	CancelRequested bool    `json:"cancel_requested,omitempty"`
	Quality         string  `json:"quality"`
	AudioOnly       bool    `json:"audio_only,omitempty"`
	ProxyUsed       bool    `json:"proxy_used,omitempty"`
	OutputDir       string  `json:"output_dir"`
	CreatedAt       string  `json:"created_at,omitempty"`
	StartedAt       string  `json:"started_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	Version         uint64  `json:"version"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	Message string `json:"message"`
	State   string `json:"state"`
}

// ForgetResponse acknowledges removal of a terminal job.
type ForgetResponse struct {
	Message string `json:"message"`
}

// ResultFile is one artifact of a completed job.
type ResultFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ResultListing describes a completed collection.
type ResultListing struct {
	ID         string       `json:"id"`
	Title      string       `json:"title,omitempty"`
	Path       string       `json:"path"`
	Collection bool         `json:"collection"`
	Files      []ResultFile `json:"files"`
}

// JobEvent is one server-sent event payload.
type JobEvent struct {
	Seq       int64     `json:"seq"`
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp"`
	Job       JobStatus `json:"job"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Health aggregates daemon runtime information for API consumers.
type Health struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"started_at,omitempty"`
	Bind         string             `json:"bind"`
	DownloadDir  string             `json:"download_dir"`
	LockFilePath string             `json:"lock_file_path"`
	HistoryPath  string             `json:"history_path,omitempty"`
	Jobs         map[string]int     `json:"jobs"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
