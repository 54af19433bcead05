package common

type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// DoParams moves the reader focus. Direction is "next" (default) or "prev".
type DoParams struct {
	Index     int    `json:"index"`
	Direction string `json:"direction,omitempty"`
}

type DoResponse struct {
	Index int `json:"index"`
}

type CherryPickParams struct {
	Index    int  `json:"index"`
	Positive bool `json:"positive"`
	Shift    bool `json:"shift,omitempty"`
}

type CherryPickResponse struct {
	Ranges string `json:"ranges"`
}

type StatusResponse struct {
	Chapter     int    `json:"chapter"`
	Title       string `json:"title"`
	Pages       int    `json:"pages"`
	CurrIndex   int    `json:"currIndex"`
	Finished    int    `json:"finished"`
	Complete    bool   `json:"complete"`
	DataSize    int64  `json:"dataSize"`
	Downloading bool   `json:"downloading"`
	Pending     []int  `json:"pending"`
}

// DoNotification is pushed on every scheduling call.
type DoNotification struct {
	Index       int  `json:"index"`
	Downloading bool `json:"downloading"`
}

// FinishedNotification is pushed after a page completed.
type FinishedNotification struct {
	Index    int   `json:"index"`
	Finished int   `json:"finished"`
	Pages    int   `json:"pages"`
	DataSize int64 `json:"dataSize"`
	Complete bool  `json:"complete"`
}
