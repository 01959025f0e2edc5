// Package filter drops configured skip fields from a block before schema
// inference.
package filter

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/recoconv/pkg/block"
)

// SkipList is a set of field names excluded from the output.
type SkipList map[string]struct{}

// DefaultSkipNames are fields of the reconstruction block that are redundant,
// oversized or derivable from other fields.
var DefaultSkipNames = []string{
	"timestamp", "livetime", "piezo_max(3)", "piezo_min(3)",
	"piezo_starttime(3)", "piezo_endtime(3)",
	"piezo_freq_binedges(9)", "acoustic_neutron",
	"acoustic_alpha", "scanner_array(2)", "scan_source_array(2)",
	"scan_nbub_array(2)", "scan_trigger_array(2)",
	"scan_comment_array(2)", "scaler(8)", "led_max_amp(8)",
	"led_max_time(8)", "null_max_amp(8)", "first_hit(8)",
	"last_hit(8)", "max_amps(8)", "max_times(8)",
	"nearest_amps(8)", "nearest_times(8)", "numtrigs(8)",
	"numpretrigs(8)", "piezo_time_windows", "piezoE",
	"PressureBins", "TempData", "PMTmatch_area_nobs",
	"nVetohits_fastdaq", "nPMThits_fastdaq", "PMTmatch_min",
	"PMTmatch_max", "PMTmatch_area",
}

// NewSkipList builds a skip list from names.
func NewSkipList(names ...string) SkipList {
	s := make(SkipList, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// DefaultSkipList returns a fresh copy of the default skip list.
func DefaultSkipList() SkipList {
	return NewSkipList(DefaultSkipNames...)
}

// Contains reports whether name is skipped.
func (s SkipList) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Apply returns a new block holding exactly the fields of b whose names are
// not in skip, in their original order and with contents unchanged. The
// input block is not modified.
func Apply(b *block.Block, skip SkipList, logger *zap.Logger) *block.Block {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := b.Clone()
	for _, name := range b.Names() {
		if skip.Contains(name) {
			logger.Debug("deleting field", zap.String("field", name))
			out.Delete(name)
		}
	}
	return out
}

// Dropped lists the names of b that Apply would remove, in block order.
func Dropped(b *block.Block, skip SkipList) []string {
	var names []string
	for _, name := range b.Names() {
		if skip.Contains(name) {
			names = append(names, name)
		}
	}
	return names
}
