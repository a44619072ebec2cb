package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/user/kvbench/internal/benchmark"
)

type TableFormatter struct{}

func (t *TableFormatter) Format(w io.Writer, data Data) error {
	fmt.Fprintln(w, "\nBenchmark Results")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Backend: %s  Strategy: %s  Count: %d\n\n",
		data.Config.Backend, data.Config.Strategy, data.Config.Count)

	if len(data.Summaries) == 0 {
		fmt.Fprintln(w, "No metrics recorded")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"Metric",
		"Ops",
		"Total",
		"Avg",
		"Min",
		"Max",
		"StdDev",
		"Failures",
	})

	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, name := range benchmark.SortedNames(data.Summaries) {
		s := data.Summaries[name]
		table.Append([]string{
			name,
			fmt.Sprintf("%d", s.OpCount),
			HumanDuration(s.Total),
			HumanDuration(s.Avg),
			HumanDuration(s.Min),
			HumanDuration(s.Max),
			HumanDuration(s.StdDev),
			fmt.Sprintf("%d", s.Failures),
		})
	}

	table.Render()

	fmt.Fprintln(w, "\nSummary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "Store has data: %t\n", data.HasData)
	fmt.Fprintf(w, "Memory delta: %.2f MB\n", float64(data.Resources.ProcessRSS)/(1024*1024))
	fmt.Fprintf(w, "CPU delta: %.1f%%\n", data.Resources.CPUPercent)
	if s, ok := throughput(data); ok {
		fmt.Fprintf(w, "Write throughput: %.2f ops/sec\n", s)
	}

	return nil
}

// throughput derives write ops/sec from the whole-run write metric,
// whichever strategy produced it.
func throughput(data Data) (float64, bool) {
	for _, name := range []string{
		benchmark.MetricWriteItems,
		benchmark.MetricMultiSet,
		benchmark.MetricWriteItemsParallel,
	} {
		run, ok := data.Summaries[name]
		if !ok || run.Total <= 0 {
			continue
		}
		ops := run.OpCount * data.Config.Count
		if item, ok := data.Summaries[benchmark.MetricWriteItem]; ok {
			ops = item.OpCount
		}
		return float64(ops) / (run.Total / 1000), true
	}
	return 0, false
}
