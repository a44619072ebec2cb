package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/user/kvbench/internal/benchmark"
)

type JSONFormatter struct{}

type JSONOutput struct {
	Timestamp  time.Time                    `json:"timestamp"`
	SystemInfo any                          `json:"system_info"`
	Config     benchmark.Config             `json:"config"`
	HasData    bool                         `json:"has_data"`
	Metrics    map[string]benchmark.Summary `json:"metrics"`
	Resources  any                          `json:"resources"`
	Summary    struct {
		Operations     int     `json:"operations"`
		Failures       int     `json:"failures"`
		WriteOpsPerSec float64 `json:"write_ops_per_sec,omitempty"`
	} `json:"summary"`
}

func (j *JSONFormatter) Format(w io.Writer, data Data) error {
	output := JSONOutput{
		Timestamp:  data.CompletedAt,
		SystemInfo: data.SystemInfo,
		Config:     data.Config,
		HasData:    data.HasData,
		Metrics:    data.Summaries,
		Resources:  data.Resources,
	}
	if output.Timestamp.IsZero() {
		output.Timestamp = time.Now()
	}
	if output.Metrics == nil {
		output.Metrics = map[string]benchmark.Summary{}
	}

	for _, s := range data.Summaries {
		output.Summary.Operations += s.OpCount
		output.Summary.Failures += s.Failures
	}
	if tp, ok := throughput(data); ok {
		output.Summary.WriteOpsPerSec = tp
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
