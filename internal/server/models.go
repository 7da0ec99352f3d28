package server

// scheduleRequest is the frame schedule shared by every calculation body.
// Frame sizes are in bits, decode order.
type scheduleRequest struct {
	Frames      []int64  `json:"frames"`
	FPS         float64  `json:"fps"`
	Delay       *float64 `json:"delay,omitempty"`
	DelayPolicy string   `json:"delay_policy,omitempty"`
}

// BufferRequest is the body of POST /v1/buffer.
// Body: { "frames": [80000, 12000], "fps": 24, "delay": 5, "rate": 3000000 }.
type BufferRequest struct {
	scheduleRequest
	// Rate is the channel rate in bits per second.
	Rate float64 `json:"rate"`
	// Trace includes the corrected arrival windows in the response.
	Trace bool `json:"trace,omitempty"`
}

// RateRequest is the body of POST /v1/rate.
type RateRequest struct {
	scheduleRequest
	// BufferBits is the target buffer size in bits.
	BufferBits int64  `json:"buffer_bits"`
	Strategy   string `json:"strategy,omitempty"`
}

// BatchRequest is the body of POST /v1/batch. Without targets the Plex
// buffer menu is evaluated.
type BatchRequest struct {
	scheduleRequest
	Targets []int64 `json:"targets,omitempty"`
}

// Window is one corrected arrival window, in seconds.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// BufferResponse reports the peak occupancy at the requested rate.
type BufferResponse struct {
	Feasible       bool     `json:"feasible"`
	BufferBits     int64    `json:"buffer_bits,omitempty"`
	BufferMB       float64  `json:"buffer_mb,omitempty"`
	Rate           float64  `json:"rate"`
	EffectiveDelay float64  `json:"effective_delay"`
	Windows        []Window `json:"windows,omitempty"`
}

// RateResponse reports the minimum rate for the requested buffer.
type RateResponse struct {
	Rate        float64 `json:"rate"`
	RateKbps    int64   `json:"rate_kbps"`
	BufferBits  int64   `json:"buffer_bits"`
	Iterations  int     `json:"iterations"`
	Simulations int     `json:"simulations"`
}

// BatchEntry is one row of a batch response. Error is set when that target
// alone failed.
type BatchEntry struct {
	BufferBits int64   `json:"buffer_bits"`
	NominalMB  float64 `json:"nominal_mb"`
	Rate       float64 `json:"rate,omitempty"`
	RateKbps   int64   `json:"rate_kbps,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// BatchResponse lists batch results in target order.
type BatchResponse struct {
	Results []BatchEntry `json:"results"`
}

// MenuResponse lists the Plex buffer menu.
type MenuResponse struct {
	SizesMB    []int   `json:"sizes_mb"`
	TargetBits []int64 `json:"target_bits"`
}

type errorResponse struct {
	Error string `json:"error"`
}
