package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/user/kvbench/internal/benchmark"
)

type CSVFormatter struct{}

func (c *CSVFormatter) Format(w io.Writer, data Data) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Timestamp",
		"Backend",
		"Strategy",
		"Count",
		"Metric",
		"Ops",
		"Total(ms)",
		"Average(ms)",
		"Min(ms)",
		"Max(ms)",
		"StdDev(ms)",
		"Failures",
		"OS",
		"Architecture",
		"CPUModel",
		"CPUCores",
	}

	if err := writer.Write(header); err != nil {
		return err
	}

	timestamp := data.CompletedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var osName, arch, cpuModel, cores string
	if info := data.SystemInfo; info != nil {
		osName, arch, cpuModel = info.OS, info.Architecture, info.CPUModel
		cores = fmt.Sprintf("%d", info.CPUCores)
	}

	for _, name := range benchmark.SortedNames(data.Summaries) {
		s := data.Summaries[name]
		row := []string{
			timestamp.Format(time.RFC3339),
			data.Config.Backend,
			string(data.Config.Strategy),
			fmt.Sprintf("%d", data.Config.Count),
			name,
			fmt.Sprintf("%d", s.OpCount),
			fmt.Sprintf("%.3f", s.Total),
			fmt.Sprintf("%.3f", s.Avg),
			fmt.Sprintf("%.3f", s.Min),
			fmt.Sprintf("%.3f", s.Max),
			fmt.Sprintf("%.3f", s.StdDev),
			fmt.Sprintf("%d", s.Failures),
			osName,
			arch,
			cpuModel,
			cores,
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return nil
}
