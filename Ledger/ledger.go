package Ledger

import (
	"log"
	"sync"
	"time"
)

const (
	// DedupTtl is how long an event id stays "seen". Slack keeps
	// redelivering an unacked event for a few minutes, so this has to
	// outlive the whole redelivery window.
	DedupTtl = 300 * time.Second

	// ClaimTtl is how long a file ownership claim lives. It only needs to
	// outlive the redundant duplicate event that arrives within seconds
	// of the mention, so it is much shorter than DedupTtl.
	ClaimTtl = 60 * time.Second
)

// Service holds the only shared mutable state in the bot: the event
// deduplication ledger and the file ownership ledger. All methods take the
// current time as an argument so TTL behaviour is testable without a clock.
//
// The mutex exists because the scheduled sweep runs off the dispatch
// goroutine; dispatch itself is single-threaded, which is what keeps the
// separate IsClaimed/Claim calls race-free.
type Service struct {
	mu         sync.Mutex
	seenEvents map[string]time.Time
	fileClaims map[string]time.Time
}

func NewService() *Service {
	return &Service{
		seenEvents: make(map[string]time.Time),
		fileClaims: make(map[string]time.Time),
	}
}

// SeenOrRecord returns true if eventId was already recorded and its entry
// is still live. Otherwise it records the id and returns false. A missing
// id is treated as "not seen": dedup here is best-effort, so we let the
// event through rather than drop it.
func (s *Service) SeenOrRecord(eventId string, now time.Time) bool {
	if eventId == "" {
		log.Printf("Ledger:SeenOrRecord#event without an event_id, dedup bypassed")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if recordedAt, seen := s.seenEvents[eventId]; seen && now.Sub(recordedAt) <= DedupTtl {
		return true
	}
	s.seenEvents[eventId] = now
	return false
}

// Claim records ownership of fileId, overwriting any prior claim.
func (s *Service) Claim(fileId string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileClaims[fileId] = now
}

// IsClaimed reports whether a live ownership claim exists for fileId.
// Expired claims are ignored (lazy expiry; the sweep removes them).
func (s *Service) IsClaimed(fileId string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimedAt, claimed := s.fileClaims[fileId]
	return claimed && now.Sub(claimedAt) <= ClaimTtl
}

// Purge drops every expired entry from both ledgers. It runs on a schedule
// decoupled from event dispatch and bounds memory to arrival rate × TTL.
func (s *Service) Purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eventId, recordedAt := range s.seenEvents {
		if now.Sub(recordedAt) > DedupTtl {
			delete(s.seenEvents, eventId)
		}
	}
	for fileId, claimedAt := range s.fileClaims {
		if now.Sub(claimedAt) > ClaimTtl {
			delete(s.fileClaims, fileId)
		}
	}
}

// Sizes returns the current entry counts, used by tests and the health
// endpoint.
func (s *Service) Sizes() (seenEvents int, fileClaims int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seenEvents), len(s.fileClaims)
}
