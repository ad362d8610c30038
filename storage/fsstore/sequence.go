package fsstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const (
	seqFile = "seq"
	// Fixed width offsets in the binary file:
	// Offset 0-7: last allocated instance id (little-endian, 56 bits used)
	// Offset 8-15: number of snapshot writes (little-endian, 56 bits used)
	lastIDOffset = 0
	writesOffset = 8
	seqFileSize  = 16
	seqMask      = 0x00FFFFFFFFFFFFFF
)

// SeqState is the content of the sequence file.
type SeqState struct {
	LastID int64
	Writes int64
}

// nextID allocates the next instance id.
func (s *Store) nextID() (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	state, err := s.readSeqStateLocked()
	if err != nil {
		return 0, err
	}
	state.LastID++
	if err := s.writeSeqStateLocked(state); err != nil {
		return 0, err
	}
	return state.LastID, nil
}

func (s *Store) countWrite() error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	state, err := s.readSeqStateLocked()
	if err != nil {
		return err
	}
	state.Writes++
	return s.writeSeqStateLocked(state)
}

// SeqState returns the current sequence state.
func (s *Store) SeqState() (*SeqState, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.readSeqStateLocked()
}

// Caller must hold seqMu.
func (s *Store) readSeqStateLocked() (*SeqState, error) {
	file := filepath.Join(s.root, "meta", seqFile)
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return &SeqState{}, nil
		}
		return nil, err
	}
	if len(data) < seqFileSize {
		return nil, fmt.Errorf("invalid sequence file size: expected %d bytes, got %d", seqFileSize, len(data))
	}
	return &SeqState{
		LastID: int64(binary.LittleEndian.Uint64(data[lastIDOffset:]) & seqMask),
		Writes: int64(binary.LittleEndian.Uint64(data[writesOffset:]) & seqMask),
	}, nil
}

// Caller must hold seqMu.
func (s *Store) writeSeqStateLocked(state *SeqState) error {
	file := filepath.Join(s.root, "meta", seqFile)
	data := make([]byte, seqFileSize)
	binary.LittleEndian.PutUint64(data[lastIDOffset:], uint64(state.LastID)&seqMask)
	binary.LittleEndian.PutUint64(data[writesOffset:], uint64(state.Writes)&seqMask)
	return s.writeFileAtomic(file, data)
}
