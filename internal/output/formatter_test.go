package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/pkg/sysinfo"
)

func testData() Data {
	return Data{
		SystemInfo: &sysinfo.SystemInfo{
			OS:           "linux",
			Architecture: "amd64",
			CPUModel:     "Test CPU",
			CPUCores:     8,
			TotalMemory:  16000000000,
		},
		Config: benchmark.Config{
			Count:    1000,
			Strategy: benchmark.StrategySequential,
			Backend:  "badger",
		},
		Summaries: map[string]benchmark.Summary{
			"writeItem": {
				Total:   1500,
				Max:     4,
				Min:     0.5,
				Avg:     1.5,
				StdDev:  0.4,
				OpCount: 1000,
			},
			"writeItems": {
				Total:   2000,
				Max:     2000,
				Min:     2000,
				Avg:     2000,
				OpCount: 1,
			},
		},
		HasData:     true,
		CompletedAt: time.Now(),
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format    string
		expectErr bool
	}{
		{"table", false},
		{"json", false},
		{"csv", false},
		{"xml", true},
		{"invalid", true},
	}

	for _, test := range tests {
		_, err := NewFormatter(test.format)
		if test.expectErr && err == nil {
			t.Errorf("Expected error for format %s", test.format)
		}
		if !test.expectErr && err != nil {
			t.Errorf("Unexpected error for format %s: %v", test.format, err)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{}
	buf := &bytes.Buffer{}

	err := formatter.Format(buf, testData())
	if err != nil {
		t.Fatalf("JSON formatting failed: %v", err)
	}

	// Verify it's valid JSON
	var result map[string]any
	err = json.Unmarshal(buf.Bytes(), &result)
	if err != nil {
		t.Errorf("Invalid JSON output: %v", err)
	}

	// Check for required fields
	for _, field := range []string{"system_info", "config", "metrics", "summary", "has_data"} {
		if _, ok := result[field]; !ok {
			t.Errorf("Missing %s in JSON output", field)
		}
	}

	summary := result["summary"].(map[string]any)
	if summary["operations"].(float64) != 1001 {
		t.Errorf("Expected 1001 operations, got %v", summary["operations"])
	}
	if summary["write_ops_per_sec"].(float64) != 500 {
		t.Errorf("Expected 500 ops/sec, got %v", summary["write_ops_per_sec"])
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{}
	buf := &bytes.Buffer{}

	err := formatter.Format(buf, testData())
	if err != nil {
		t.Fatalf("CSV formatting failed: %v", err)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and two data rows, got %d records", len(records))
	}

	// Check header
	if !strings.Contains(strings.Join(records[0], ","), "Metric") {
		t.Error("CSV header missing Metric field")
	}
	if records[1][4] != "writeItem" || records[2][4] != "writeItems" {
		t.Errorf("Expected rows sorted by metric name, got %s and %s", records[1][4], records[2][4])
	}
}

func TestCSVFormatterWithoutSystemInfo(t *testing.T) {
	data := testData()
	data.SystemInfo = nil

	if err := (&CSVFormatter{}).Format(&bytes.Buffer{}, data); err != nil {
		t.Errorf("CSV formatting without system info failed: %v", err)
	}
}

func TestTableFormatter(t *testing.T) {
	formatter := &TableFormatter{}
	buf := &bytes.Buffer{}

	err := formatter.Format(buf, testData())
	if err != nil {
		t.Fatalf("Table formatting failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Benchmark Results") {
		t.Error("Table output missing title")
	}
	if !strings.Contains(output, "writeItem") {
		t.Error("Table output missing metric name")
	}
	if !strings.Contains(output, "1.50sec") {
		t.Error("Table output missing humanized total")
	}
	if !strings.Contains(output, "Summary") {
		t.Error("Table output missing summary section")
	}
}

func TestTableFormatterEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	data := testData()
	data.Summaries = nil

	if err := (&TableFormatter{}).Format(buf, data); err != nil {
		t.Fatalf("Table formatting failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No metrics recorded") {
		t.Error("Expected empty notice in table output")
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{0.25, "0.250ms"},
		{500, "500.000ms"},
		{999.9, "999.900ms"},
		{1000, "1.00sec"},
		{1500, "1.50sec"},
		{59999, "60.00sec"},
		{60000, "1.0min"},
		{90000, "1.5min"},
	}

	for _, test := range tests {
		result := HumanDuration(test.ms)
		if result != test.expected {
			t.Errorf("For %vms, expected %s, got %s", test.ms, test.expected, result)
		}
	}
}

func TestFromReport(t *testing.T) {
	report := &benchmark.Report{
		Config:    benchmark.Config{Count: 10},
		HasData:   true,
		Summaries: map[string]benchmark.Summary{"readItem": {Avg: 1, OpCount: 10}},
	}

	data := FromReport(nil, report)
	if !data.HasData || data.Config.Count != 10 || len(data.Summaries) != 1 {
		t.Errorf("Report not carried over: %+v", data)
	}
}
