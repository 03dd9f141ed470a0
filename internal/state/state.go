package state

import (
	"sync"
	"time"

	"midrev/internal/strategy"

	"github.com/shopspring/decimal"
)

type Balances struct {
	Base      decimal.Decimal `json:"base"`
	Quote     decimal.Decimal `json:"quote"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	LastExecuted  strategy.Action `json:"last_executed"`
	LastPrice     float64         `json:"last_price"`
	Average       float64         `json:"average"`
	WindowLen     int             `json:"window_len"`
	Ticks         uint64          `json:"ticks"`
	Malformed     uint64          `json:"malformed"`
	Dropped       uint64          `json:"dropped"`
	Lifecycles    uint64          `json:"lifecycles"`
	InFlight      bool            `json:"in_flight"`
	LastTickTime  time.Time       `json:"last_tick_time"`
	LastTradeTime time.Time       `json:"last_trade_time"`
	Balances      Balances        `json:"balances"`
}

// Store holds the decision state. The decision loop is the only writer of
// LastExecuted; other goroutines only read snapshots.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStore() *Store {
	return &Store{
		snapshot: Snapshot{LastExecuted: strategy.Hold},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Store) LastExecuted() strategy.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.LastExecuted
}

func (s *Store) SetLastExecuted(action strategy.Action, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastExecuted = action
	s.snapshot.LastTradeTime = at
	s.snapshot.Lifecycles++
}

func (s *Store) RecordTick(price, average float64, windowLen int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastPrice = price
	s.snapshot.Average = average
	s.snapshot.WindowLen = windowLen
	s.snapshot.LastTickTime = at
	s.snapshot.Ticks++
}

func (s *Store) RecordMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Malformed++
}

func (s *Store) RecordDropped(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Dropped += uint64(n)
}

func (s *Store) SetInFlight(inFlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.InFlight = inFlight
}

func (s *Store) UpdateBalances(balances Balances) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Balances = balances
}
