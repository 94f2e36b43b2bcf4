// pkg/core/settings.go
package core

// ExportSettings describes one export request.
type ExportSettings struct {
	Mode     ExportMode `json:"mode"`
	Duration float64    `json:"duration"` // seconds, > 0
	FPS      int        `json:"fps"`      // > 0
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Bitrate  int        `json:"bitrate"` // kbit/s
	Codec    string     `json:"codec"`

	// Concurrency is the renderer pool size for the parallel pipeline.
	// Ignored by the sequential pipeline.
	Concurrency int `json:"concurrency,omitempty"`
}
