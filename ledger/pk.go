package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// NewID is the id of an instance which has not been stored yet.
	NewID int64 = -1

	// MaxVersion selects the highest stored version.
	MaxVersion = -1
	// LiveVersion selects the live version.
	LiveVersion = -2
)

// PK identifies an instance version. Version may be a selector.
type PK struct {
	ID      int64
	Version int
}

func NewPK() PK {
	return PK{ID: NewID, Version: 1}
}

// IsNew reports whether pk denotes an instance not stored yet.
func (pk PK) IsNew() bool {
	return pk.ID == NewID
}

// IsDistinct reports whether pk names a concrete version of a stored
// instance.
func (pk PK) IsDistinct() bool {
	return pk.ID > 0 && pk.Version > 0
}

func (pk PK) String() string {
	if pk.IsNew() {
		return "NEW"
	}
	switch pk.Version {
	case MaxVersion:
		return fmt.Sprintf("%d.MAX", pk.ID)
	case LiveVersion:
		return fmt.Sprintf("%d.LIVE", pk.ID)
	}
	return fmt.Sprintf("%d.%d", pk.ID, pk.Version)
}

// ParsePK parses "NEW", "<id>", "<id>.<version>", "<id>.MAX" and
// "<id>.LIVE". A bare id selects the max version.
func ParsePK(s string) (PK, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "NEW" {
		return NewPK(), nil
	}
	idText, verText, hasVer := strings.Cut(s, ".")
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || id < 1 {
		return PK{}, fmt.Errorf("invalid pk %q: bad id", s)
	}
	pk := PK{ID: id, Version: MaxVersion}
	if !hasVer {
		return pk, nil
	}
	switch verText {
	case "MAX":
	case "LIVE":
		pk.Version = LiveVersion
	default:
		v, err := strconv.Atoi(verText)
		if err != nil || v < 1 {
			return PK{}, fmt.Errorf("invalid pk %q: bad version", s)
		}
		pk.Version = v
	}
	return pk, nil
}
