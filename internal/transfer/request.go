package transfer

import (
	"fmt"
	"strings"
)

// Mode selects the source and sink of a run
type Mode uint8

const (
	ModeDump    Mode = iota + 1 // store -> file
	ModeRestore                 // file -> store
	ModeSync                    // store -> store
)

var modeNames = map[Mode]string{
	ModeDump:    "dump",
	ModeRestore: "restore",
	ModeSync:    "sync",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Request describes one run.
// Source and Sink are store URIs or dump file paths depending on Mode.
// Zero Pattern and BulkSize take the configured defaults.
type Request struct {
	Mode     Mode
	Source   string
	Sink     string
	Pattern  string
	BulkSize int
	UseTTL   bool
}

func (r Request) validate() error {
	if _, ok := modeNames[r.Mode]; !ok {
		return fmt.Errorf("%w: unknown %s", ErrInvalidRequest, r.Mode)
	}
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("%w: %s needs a source", ErrInvalidRequest, r.Mode)
	}
	if strings.TrimSpace(r.Sink) == "" {
		return fmt.Errorf("%w: %s needs a sink", ErrInvalidRequest, r.Mode)
	}
	if r.BulkSize < 0 {
		return fmt.Errorf("%w: bulk size %d", ErrInvalidRequest, r.BulkSize)
	}
	return nil
}
