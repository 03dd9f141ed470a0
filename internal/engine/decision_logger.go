package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"midrev/internal/strategy"

	"github.com/sirupsen/logrus"
)

// Decision is one journal line per handled trading opportunity.
type Decision struct {
	RunID          string          `json:"run_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Symbol         string          `json:"symbol"`
	Price          float64         `json:"price"`
	Average        float64         `json:"average"`
	Intent         strategy.Action `json:"intent"`
	Result         string          `json:"result"`
	LimitPrice     string          `json:"limit_price,omitempty"`
	Size           string          `json:"size,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	RepricePrice   string          `json:"reprice_price,omitempty"`
	RepriceSize    string          `json:"reprice_size,omitempty"`
	RepriceOrderID string          `json:"reprice_order_id,omitempty"`
	RepriceError   string          `json:"reprice_error,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Journal receives decisions. DecisionLogger is the file-backed version.
type Journal interface {
	Append(decision Decision)
}

type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) Append(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if decision.RunID == "" {
		decision.RunID = d.runID
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal decision")
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		logrus.WithError(err).Error("failed to write decision")
		return
	}
	if err := d.writer.Flush(); err != nil {
		logrus.WithError(err).Error("failed to flush decision log")
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}

type discardJournal struct{}

func (discardJournal) Append(Decision) {}
