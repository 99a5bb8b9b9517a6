package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lox/cardroom/internal/handid"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/store"
)

// HandHistoryCmd is the root command for recorded hands.
type HandHistoryCmd struct {
	List HandHistoryListCmd `cmd:"" help:"List recent hands"`
	Show HandHistoryShowCmd `cmd:"" help:"Show one hand"`
	Load HandHistoryLoadCmd `cmd:"" help:"Store PHH files in the database"`
}

type HandHistoryListCmd struct {
	Database string `default:"cardroom.db" help:"SQLite database path"`
	Table    string `help:"Only list hands from this table"`
	Limit    int    `default:"20" help:"Maximum number of hands to list (0 = all)"`
}

func (cmd HandHistoryListCmd) Run() error {
	st, err := store.Open(cmd.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.HandHistories(context.Background(), cmd.Table, cmd.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No hands recorded.")
		return nil
	}
	fmt.Println(renderList(records))
	return nil
}

// HandHistoryShowCmd renders a hand from the database, or from a .phh file
// with --file.
type HandHistoryShowCmd struct {
	Hand     string `arg:"" optional:"" help:"Hand identifier"`
	File     string `type:"existingfile" help:"Read the hand from a PHH file instead"`
	Database string `default:"cardroom.db" help:"SQLite database path"`
}

func (cmd HandHistoryShowCmd) Run() error {
	hand, err := cmd.load()
	if err != nil {
		return err
	}
	fmt.Println(renderHand(hand))
	return nil
}

func (cmd HandHistoryShowCmd) load() (*phh.HandHistory, error) {
	if cmd.File != "" {
		f, err := os.Open(cmd.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return phh.Decode(f)
	}
	if cmd.Hand == "" {
		return nil, fmt.Errorf("hand-history show needs a hand identifier or --file")
	}

	st, err := store.Open(cmd.Database)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	rec, err := st.HandHistory(context.Background(), cmd.Hand)
	if err != nil {
		return nil, err
	}
	return rec.Hand, nil
}

// HandHistoryLoadCmd imports PHH files. Each path may be a file, a glob
// pattern or a directory, which is searched for .phh files.
type HandHistoryLoadCmd struct {
	Paths    []string `arg:"" help:"PHH files, glob patterns or directories"`
	Database string   `default:"cardroom.db" help:"SQLite database path"`
	Table    string   `help:"Table name for hands that do not name one"`
}

func (cmd HandHistoryLoadCmd) Run() error {
	st, err := store.Open(cmd.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := loadHands(context.Background(), st, cmd.Paths, cmd.Table)
	fmt.Printf("Loaded %d hands.\n", n)
	return err
}

type handAppender interface {
	AppendHandHistory(ctx context.Context, hand *phh.HandHistory) error
}

// loadHands stores every hand found under patterns and returns how many
// were stored. Files that fail to parse or store are skipped and reported
// together in the error.
func loadHands(ctx context.Context, st handAppender, patterns []string, table string) (int, error) {
	files, err := expandPaths(patterns)
	if err != nil {
		return 0, err
	}

	var (
		loaded int
		errs   []error
	)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hand, err := phh.DecodeBytes(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", file, err))
			continue
		}
		if hand.Table == "" {
			hand.Table = table
		}
		if hand.HandID == "" {
			hand.HandID = handid.New()
		}
		if err := st.AppendHandHistory(ctx, hand); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", file, err))
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// expandPaths resolves glob patterns and directories into a sorted list of
// files. A pattern that matches nothing is an error.
func expandPaths(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				files = append(files, match)
				continue
			}
			err = filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".phh") {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", match, err)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}
