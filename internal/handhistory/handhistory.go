// Package handhistory turns finished hands into PHH records and hands them
// to recorders.
package handhistory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/fileutil"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/table"
)

// Build records the hand currently held by t. It must be called before the
// state is destroyed, while seats still carry their player indices.
func Build(tableName string, t *table.Table, handID string, started time.Time) (*phh.HandHistory, error) {
	state := t.State()
	if state == nil {
		return nil, errors.New("handhistory: no hand to record")
	}

	n := state.PlayerCount()
	players := make([]string, n)
	seats := make([]int, n)
	for _, seat := range t.Seats() {
		if seat.PlayerIndex != nil {
			players[*seat.PlayerIndex] = seat.User
			seats[*seat.PlayerIndex] = seat.Index + 1
		}
	}

	desc := t.Game().Descriptor()
	starting := state.StartingStacks()
	finishing := state.Stacks()
	winnings := make([]int, n)
	for i := range n {
		winnings[i] = max(finishing[i]-starting[i], 0)
	}

	hand := &phh.HandHistory{
		Variant:           desc.Variant,
		Table:             tableName,
		SeatCount:         t.SeatCount(),
		Seats:             seats,
		Antes:             perPlayer(desc.Antes, n),
		BlindsOrStraddles: perPlayer(desc.BlindsOrStraddles, n),
		BringIn:           desc.BringIn,
		MinBet:            desc.MinBet,
		StartingStacks:    starting,
		FinishingStacks:   finishing,
		Winnings:          winnings,
		Actions:           state.Actions(),
		Players:           players,
		HandID:            handID,
	}
	hand.SetTimestamp(started)
	return hand, nil
}

// perPlayer expands forced bets to one entry per player. A single ante
// applies to everyone; blinds are padded with zeros.
func perPlayer(values []int, n int) []int {
	out := make([]int, n)
	if len(values) == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	copy(out, values)
	return out
}

// FileRecorder writes every hand to <dir>/<table>/<hand>.phh.
type FileRecorder struct {
	dir    string
	logger *log.Logger
}

// NewFileRecorder returns a recorder rooted at dir.
func NewFileRecorder(dir string, logger *log.Logger) *FileRecorder {
	return &FileRecorder{dir: dir, logger: logger.WithPrefix("phh-file")}
}

// Path returns where hand is written.
func (r *FileRecorder) Path(hand *phh.HandHistory) string {
	return filepath.Join(r.dir, sanitize(hand.Table), sanitize(hand.HandID)+".phh")
}

func (r *FileRecorder) RecordHand(_ context.Context, hand *phh.HandHistory) error {
	data, err := phh.EncodeToBytes(hand)
	if err != nil {
		return err
	}
	path := r.Path(hand)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write hand history: %w", err)
	}
	r.logger.Debug("Wrote hand history", "path", path)
	return nil
}

func sanitize(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "_"
	}
	return name
}

// StoreRecorder appends every hand to the SQLite store.
type StoreRecorder struct {
	store *store.Store
}

func NewStoreRecorder(s *store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) RecordHand(ctx context.Context, hand *phh.HandHistory) error {
	return r.store.AppendHandHistory(ctx, hand)
}

// Recorder receives completed hands.
type Recorder interface {
	RecordHand(ctx context.Context, hand *phh.HandHistory) error
}

// Multi fans a hand out to every recorder, joining their errors.
type Multi []Recorder

func (m Multi) RecordHand(ctx context.Context, hand *phh.HandHistory) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordHand(ctx, hand); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
