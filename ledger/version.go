package ledger

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// VersionData is the bookkeeping of one stored version.
type VersionData struct {
	Step       int64     `json:"step"`
	Live       bool      `json:"live,omitempty"`
	CreatedBy  int64     `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedBy int64     `json:"modifiedBy"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// VersionInfo describes the stored versions of an instance. Min, Max,
// Live and LastModified are derived from Versions and never set
// independently. Live is 0 when no version is live.
type VersionInfo struct {
	ID       int64               `json:"id"`
	TypeID   int64               `json:"typeId"`
	Versions map[int]VersionData `json:"versions"`

	Min          int `json:"-"`
	Max          int `json:"-"`
	Live         int `json:"-"`
	LastModified int `json:"-"`
}

func newVersionInfo(id, typeID int64) *VersionInfo {
	return &VersionInfo{ID: id, TypeID: typeID, Versions: map[int]VersionData{}}
}

// derive recomputes the markers from Versions.
func (vi *VersionInfo) derive() {
	vi.Min, vi.Max, vi.Live, vi.LastModified = 0, 0, 0, 0
	var lastMod time.Time
	for _, v := range vi.Sorted() {
		d := vi.Versions[v]
		if vi.Min == 0 {
			vi.Min = v
		}
		vi.Max = v
		if d.Live {
			vi.Live = v
		}
		if vi.LastModified == 0 || !d.ModifiedAt.Before(lastMod) {
			vi.LastModified = v
			lastMod = d.ModifiedAt
		}
	}
}

// setLive marks v as the only live version.
func (vi *VersionInfo) setLive(v int) {
	for k, d := range vi.Versions {
		if d.Live != (k == v) {
			d.Live = k == v
			vi.Versions[k] = d
		}
	}
}

func (vi *VersionInfo) HasLive() bool {
	return vi.Live > 0
}

// Sorted returns the stored versions in ascending order.
func (vi *VersionInfo) Sorted() []int {
	return slices.Sorted(maps.Keys(vi.Versions))
}

// Contains reports whether pk resolves to a stored version.
func (vi *VersionInfo) Contains(pk PK) bool {
	_, err := vi.Resolve(pk)
	return err == nil
}

// Resolve returns the concrete version pk denotes.
func (vi *VersionInfo) Resolve(pk PK) (int, error) {
	if pk.ID != vi.ID {
		return 0, fmt.Errorf("%w: %s is not a version of %d", ErrNotFound, pk, vi.ID)
	}
	v := pk.Version
	switch v {
	case MaxVersion:
		v = vi.Max
	case LiveVersion:
		v = vi.Live
	}
	if _, ok := vi.Versions[v]; !ok {
		return 0, fmt.Errorf("%w: version %s", ErrNotFound, pk)
	}
	return v, nil
}

func (vi *VersionInfo) Clone() *VersionInfo {
	res := *vi
	res.Versions = maps.Clone(vi.Versions)
	return &res
}

func (vi *VersionInfo) String() string {
	return fmt.Sprintf("{id=%d min=%d max=%d live=%d lastModified=%d count=%d}",
		vi.ID, vi.Min, vi.Max, vi.Live, vi.LastModified, len(vi.Versions))
}
