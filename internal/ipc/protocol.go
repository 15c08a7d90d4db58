package ipc

// Request is one newline-delimited JSON command sent to the running coordinator.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response reports the command outcome plus a coordinator snapshot.
type Response struct {
	OK         bool     `json:"ok"`
	State      string   `json:"state,omitempty"`
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Resource   string   `json:"resource,omitempty"`
	UsingStart bool     `json:"using_start,omitempty"`
	Current    float32  `json:"current,omitempty"`
	Peak       float32  `json:"peak,omitempty"`
	Items      []string `json:"items,omitempty"`
}
