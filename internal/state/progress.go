package state

import (
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/sirupsen/logrus"
)

// NetworkProgressKey is the fixed tag network progress is stored under.
const NetworkProgressKey = "current"

// ProgressReport describes what one slot notification revealed.
type ProgressReport struct {
	Created      bool
	SkippedSlots uint64
	Delay        time.Duration
	Delayed      bool
}

// RecordProgress stores a slot notification. A jump of more than one slot
// and a wall-clock gap above the delay threshold are logged, never
// rejected.
func (s *Store) RecordProgress(info models.SlotInfo) ProgressReport {
	now := s.now()

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	cur, ok := s.progress[NetworkProgressKey]
	if !ok {
		s.progress[NetworkProgressKey] = &models.NetworkProgress{
			CurrentSlot: info.Slot,
			ParentSlot:  info.Parent,
			RootSlot:    info.Root,
			LastUpdate:  now,
		}
		s.logger.WithField("slot", info.Slot).Info("network progress initialized")
		return ProgressReport{Created: true}
	}

	var report ProgressReport
	if info.Slot > cur.CurrentSlot+1 {
		report.SkippedSlots = info.Slot - cur.CurrentSlot - 1
		s.logger.WithFields(logrus.Fields{
			"previous": cur.CurrentSlot,
			"slot":     info.Slot,
			"skipped":  report.SkippedSlots,
		}).Warn("slots skipped")
	}

	report.Delay = now.Sub(cur.LastUpdate)
	if report.Delay > s.delay {
		report.Delayed = true
		s.logger.WithFields(logrus.Fields{
			"slot":  info.Slot,
			"delay": report.Delay,
		}).Warn("network progress delayed")
	}

	cur.CurrentSlot = info.Slot
	cur.ParentSlot = info.Parent
	cur.RootSlot = info.Root
	cur.LastUpdate = now
	return report
}

// NetworkProgress returns a copy of the tracked progress, if any has been
// observed.
func (s *Store) NetworkProgress() (models.NetworkProgress, bool) {
	s.progressMu.RLock()
	defer s.progressMu.RUnlock()
	cur, ok := s.progress[NetworkProgressKey]
	if !ok {
		return models.NetworkProgress{}, false
	}
	return *cur, true
}

// ValidateFreshness reports whether an update at updateSlot is within the
// stale tolerance of the tracked network progress. Before any progress is
// seen every update is fresh.
func (s *Store) ValidateFreshness(updateSlot uint64) bool {
	p, ok := s.NetworkProgress()
	if !ok {
		return true
	}
	if p.CurrentSlot > updateSlot+s.tolerance {
		s.logger.WithFields(logrus.Fields{
			"slot":      updateSlot,
			"current":   p.CurrentSlot,
			"lag":       p.CurrentSlot - updateSlot,
			"tolerance": s.tolerance,
		}).Warn("stale update")
		return false
	}
	return true
}
