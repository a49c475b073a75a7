package tilegraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sslab-gatech/tile-graph/pkg/compression"
)

// Checkpoint is the optional restart mechanism spec §4.9/§7 describes: after
// each round's swap, flush the new `current` array to a compressed
// per-iteration file under --path-fault-tolerance-output. The flush runs
// concurrently with the next round's fetch/process/reduce work; Runtime
// blocks the *following* round's end-of-round bookkeeping on it, never the
// round the flush belongs to (spec §4.9: "blocks the next iteration's
// end-of-round on its completion").
type Checkpoint struct {
	dir  string
	comp compression.Compressor
}

// NewCheckpoint constructs a Checkpoint writing under dir.
func NewCheckpoint(dir string) *Checkpoint {
	return &Checkpoint{dir: dir, comp: compression.Default()}
}

// FlushAsync snapshots values (the vertex state right after the iteration
// swap) and writes it in a goroutine, returning a channel that receives the
// write's error (nil on success) once the file is written and renamed into
// place. The file is not fsynced.
func (c *Checkpoint) FlushAsync(iteration int, values []uint64) <-chan error {
	snapshot := make([]uint64, len(values))
	copy(snapshot, values)

	done := make(chan error, 1)
	go func() {
		done <- c.writeSync(iteration, snapshot)
	}()
	return done
}

func (c *Checkpoint) writeSync(iteration int, values []uint64) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("tilegraph: create checkpoint dir: %w", err)
	}

	var raw bytes.Buffer
	if err := binary.Write(&raw, binary.LittleEndian, uint64(len(values))); err != nil {
		return fmt.Errorf("tilegraph: encode checkpoint header: %w", err)
	}
	if err := binary.Write(&raw, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("tilegraph: encode checkpoint values: %w", err)
	}

	packed, err := c.comp.Compress(raw.Bytes())
	if err != nil {
		return fmt.Errorf("tilegraph: compress checkpoint: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("checkpoint-%d.dat", iteration))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, packed, 0o644); err != nil {
		return fmt.Errorf("tilegraph: write checkpoint file: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadCheckpoint restores a checkpoint file's vertex values for a restart.
func ReadCheckpoint(dir string, iteration int) ([]uint64, error) {
	path := filepath.Join(dir, fmt.Sprintf("checkpoint-%d.dat", iteration))
	packed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: read checkpoint file: %w", err)
	}

	raw, err := compression.AutoDecompress(packed)
	if err != nil {
		return nil, fmt.Errorf("tilegraph: decompress checkpoint: %w", err)
	}

	r := bytes.NewReader(raw)
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("tilegraph: decode checkpoint header: %w", err)
	}
	values := make([]uint64, count)
	if err := binary.Read(r, binary.LittleEndian, &values); err != nil {
		return nil, fmt.Errorf("tilegraph: decode checkpoint values: %w", err)
	}
	return values, nil
}
