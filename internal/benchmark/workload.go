package benchmark

import (
	_ "embed"
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"strconv"
	"sync"
	"time"
)

//go:embed mockdata.json
var mockData []byte

// sampleMessages is the payload corpus loaded from mockdata.json.
var sampleMessages = mustLoadCorpus(mockData)

type PayloadMode string

const (
	PayloadCorpus  PayloadMode = "corpus"
	PayloadNumeric PayloadMode = "numeric"
)

// WorkItem is one keyed entry of a workload.
type WorkItem struct {
	Key     string `json:"key"`
	Payload string `json:"payload"`
}

// Workload is an ordered, shuffled sequence of work items.
type Workload []WorkItem

// Keys returns the keys in workload order.
func (w Workload) Keys() []string {
	keys := make([]string, len(w))
	for i, item := range w {
		keys[i] = item.Key
	}
	return keys
}

type GeneratorOptions struct {
	Prefix  string
	Payload PayloadMode
	// Seed makes the generator reproducible. Nil draws a time-based seed.
	Seed *int64
}

// Generator produces shuffled workloads. It is safe for concurrent use.
type Generator struct {
	prefix  string
	payload PayloadMode

	mu  sync.Mutex
	rng *mrand.Rand
}

func NewGenerator(opts GeneratorOptions) *Generator {
	if opts.Prefix == "" {
		opts.Prefix = DefaultKeyPrefix
	}
	if opts.Payload == "" {
		opts.Payload = PayloadCorpus
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	return &Generator{
		prefix:  opts.Prefix,
		payload: opts.Payload,
		rng:     mrand.New(mrand.NewSource(seed)),
	}
}

// Generate returns count items keyed prefix+n for a uniform permutation of
// 1..count. A zero count yields an empty workload.
func (g *Generator) Generate(count int) (Workload, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkloadSize, count)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	numbers := g.shuffledNumbers(count)

	workload := make(Workload, count)
	for i, n := range numbers {
		workload[i] = WorkItem{
			Key:     g.prefix + strconv.Itoa(n),
			Payload: g.nextPayload(),
		}
	}
	return workload, nil
}

// shuffledNumbers is a Fisher-Yates shuffle of 1..count.
func (g *Generator) shuffledNumbers(count int) []int {
	numbers := make([]int, count)
	for i := range numbers {
		numbers[i] = i + 1
	}
	for i := count - 1; i > 0; i-- {
		j := g.rng.Intn(i + 1)
		numbers[i], numbers[j] = numbers[j], numbers[i]
	}
	return numbers
}

func (g *Generator) nextPayload() string {
	if g.payload == PayloadNumeric || len(sampleMessages) == 0 {
		return strconv.FormatInt(g.rng.Int63n(1_000_000_000_000), 10)
	}
	return sampleMessages[g.rng.Intn(len(sampleMessages))]
}

func mustLoadCorpus(data []byte) []string {
	var entries []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		panic(fmt.Sprintf("benchmark: invalid embedded corpus: %v", err))
	}

	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, e.Message)
	}
	return messages
}

func ParsePayloadMode(name string) (PayloadMode, error) {
	switch mode := PayloadMode(name); mode {
	case PayloadCorpus, PayloadNumeric:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown payload mode: %s", name)
	}
}
