package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// fileState is the on-disk layout: quantities keyed by "size/flavor" plus the
// free-form settings map.
type fileState struct {
	Stock    map[string]int    `json:"stock"`
	Settings map[string]string `json:"settings,omitempty"`
}

// FileAdapter keeps the ledger in memory behind a mutex and flushes the whole
// state to a JSON file on every mutation. The mutex is also the atomicity
// boundary for DecrementAll: check and decrement run under one lock.
type FileAdapter struct {
	path string

	mu       sync.Mutex
	stock    map[domain.ItemID]int
	settings map[string]string
}

func NewFileAdapter(path string) (*FileAdapter, error) {
	a := &FileAdapter{
		path:     path,
		stock:    make(map[domain.ItemID]int),
		settings: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stock file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode stock file %s: %w", path, err)
	}
	for key, qty := range state.Stock {
		id, err := domain.ParseItemID(key)
		if err != nil {
			return nil, fmt.Errorf("decode stock file %s: bad key %q", path, key)
		}
		if qty < 0 {
			qty = 0
		}
		a.stock[id] = qty
	}
	for name, value := range state.Settings {
		a.settings[name] = value
	}
	return a, nil
}

func (a *FileAdapter) Get(ctx context.Context, id domain.ItemID) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stock[id], nil
}

func (a *FileAdapter) Set(ctx context.Context, id domain.ItemID, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stock[id] = quantity
	return a.persistLocked()
}

func (a *FileAdapter) Add(ctx context.Context, id domain.ItemID, delta int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	quantity := a.stock[id] + delta
	if quantity < 0 {
		quantity = 0
	}
	a.stock[id] = quantity
	return quantity, a.persistLocked()
}

func (a *FileAdapter) List(ctx context.Context) ([]domain.StockLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	levels := make([]domain.StockLevel, 0, len(a.stock))
	for id, qty := range a.stock {
		levels = append(levels, domain.StockLevel{ItemID: id, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].ItemID.String() < levels[j].ItemID.String()
	})
	return levels, nil
}

func (a *FileAdapter) DecrementAll(ctx context.Context, lines []domain.CartLine) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ln := range lines {
		available := a.stock[ln.ItemID]
		if ln.Quantity > available {
			return &domain.StockShortageError{
				ItemID:    ln.ItemID,
				Requested: ln.Quantity,
				Available: available,
			}
		}
	}
	for _, ln := range lines {
		a.stock[ln.ItemID] -= ln.Quantity
	}
	return a.persistLocked()
}

func (a *FileAdapter) Setting(ctx context.Context, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings[name], nil
}

func (a *FileAdapter) PutSetting(ctx context.Context, name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings[name] = value
	return a.persistLocked()
}

// persistLocked writes the full state through a temp file and rename so a
// crash mid-write never leaves a truncated ledger. Callers hold a.mu.
func (a *FileAdapter) persistLocked() error {
	state := fileState{
		Stock:    make(map[string]int, len(a.stock)),
		Settings: a.settings,
	}
	for id, qty := range a.stock {
		state.Stock[id.String()] = qty
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}

	tmp := a.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}
	return nil
}
