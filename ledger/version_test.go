package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/tony-format/contentstore/content"
)

func TestVersionInfoDerive(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	vi := newVersionInfo(4, 9)
	vi.Versions[2] = VersionData{ModifiedAt: t0.Add(time.Hour)}
	vi.Versions[5] = VersionData{ModifiedAt: t0, Live: true}
	vi.Versions[7] = VersionData{ModifiedAt: t0.Add(time.Hour)}
	vi.derive()

	got := []int{vi.Min, vi.Max, vi.Live, vi.LastModified}
	if diff := cmp.Diff([]int{2, 7, 5, 7}, got); diff != "" {
		t.Errorf("markers mismatch (-want +got):\n%s", diff)
	}

	vi.setLive(2)
	vi.derive()
	if vi.Live != 2 || vi.Versions[5].Live {
		t.Errorf("setLive(2): live = %d, version 5 live = %v", vi.Live, vi.Versions[5].Live)
	}

	delete(vi.Versions, 2)
	vi.derive()
	if vi.HasLive() {
		t.Errorf("HasLive() = true after removing the live version")
	}
	if vi.Min != 5 {
		t.Errorf("Min = %d, want 5", vi.Min)
	}
}

func TestVersionInfoResolve(t *testing.T) {
	vi := newVersionInfo(4, 9)
	vi.Versions[1] = VersionData{}
	vi.Versions[3] = VersionData{Live: true}
	vi.Versions[6] = VersionData{}
	vi.derive()

	tests := []struct {
		pk   PK
		want int
		err  bool
	}{
		{pk: PK{4, MaxVersion}, want: 6},
		{pk: PK{4, LiveVersion}, want: 3},
		{pk: PK{4, 1}, want: 1},
		{pk: PK{4, 2}, err: true},
		{pk: PK{5, 1}, err: true},
	}
	for _, tt := range tests {
		got, err := vi.Resolve(tt.pk)
		if tt.err {
			if !errors.Is(err, content.ErrNotFound) {
				t.Errorf("Resolve(%s) error = %v, want not found", tt.pk, err)
			}
			if vi.Contains(tt.pk) {
				t.Errorf("Contains(%s) = true", tt.pk)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Resolve(%s) = %d, %v, want %d", tt.pk, got, err, tt.want)
		}
	}
}
