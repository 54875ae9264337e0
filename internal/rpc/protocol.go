package rpc

// Method names served over the connection
const (
	MethodInitialize = "initialize"
	MethodLine       = "catch/line"
	MethodLines      = "catch/lines"
	MethodReset      = "catch/reset"
	MethodRemoveTag  = "catch/removeTag"
	MethodDone       = "catch/done"
	MethodStats      = "catch/stats"
	MethodShutdown   = "shutdown"
	MethodExit       = "exit"
)

// ServerInfo identifies the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the response to initialize
type InitializeResult struct {
	ServerInfo ServerInfo `json:"serverInfo"`
	Methods    []string   `json:"methods"`
}

// LineParams feeds a single line
type LineParams struct {
	Line string `json:"line"`
}

// LineResult reports what the queue forwarded for one line
type LineResult struct {
	// Output is the forwarded text, valid only when Emitted is true
	Output  string `json:"output"`
	Emitted bool   `json:"emitted"`
	// Blocks holds blocks printed by catchers while handling the line
	Blocks []string `json:"blocks,omitempty"`
}

// LinesParams feeds a batch of lines in order
type LinesParams struct {
	Lines []string `json:"lines"`
}

// LinesResult collects the forwarded text of a batch, consumed lines omitted
type LinesResult struct {
	Output []string `json:"output"`
	Blocks []string `json:"blocks,omitempty"`
}

// RemoveTagParams names the tag to remove
type RemoveTagParams struct {
	Tag string `json:"tag"`
}

// RemoveTagResult reports how many catchers were removed
type RemoveTagResult struct {
	Removed int `json:"removed"`
}

// CatcherStats describes one queue member
type CatcherStats struct {
	Name      string   `json:"name"`
	Completed int      `json:"completed"`
	Capturing bool     `json:"capturing"`
	Tags      []string `json:"tags,omitempty"`
}

// StatsResult summarizes the session
type StatsResult struct {
	LinesRead    int            `json:"linesRead"`
	LinesEmitted int            `json:"linesEmitted"`
	Members      int            `json:"members"`
	Catchers     []CatcherStats `json:"catchers"`
}
