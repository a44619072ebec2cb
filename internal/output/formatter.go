package output

import (
	"fmt"
	"io"
	"time"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/pkg/sysinfo"
)

type Data struct {
	SystemInfo  *sysinfo.SystemInfo
	Config      benchmark.Config
	Summaries   map[string]benchmark.Summary
	HasData     bool
	Resources   sysinfo.Usage
	CompletedAt time.Time
}

// FromReport pairs a runner report with the host it ran on.
func FromReport(info *sysinfo.SystemInfo, report *benchmark.Report) Data {
	return Data{
		SystemInfo:  info,
		Config:      report.Config,
		Summaries:   report.Summaries,
		HasData:     report.HasData,
		Resources:   report.Resources,
		CompletedAt: report.CompletedAt,
	}
}

type Formatter interface {
	Format(w io.Writer, data Data) error
}

func NewFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// HumanDuration renders a millisecond figure in the largest unit that
// keeps it at or above one.
func HumanDuration(ms float64) string {
	switch {
	case ms >= 60000:
		return fmt.Sprintf("%.1fmin", ms/60000)
	case ms >= 1000:
		return fmt.Sprintf("%.2fsec", ms/1000)
	default:
		return fmt.Sprintf("%.3fms", ms)
	}
}
