package service

import (
	"sort"
	"sync"
	"time"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/metrics"
)

type questionKey struct {
	moderatorID     int64
	promptMessageID int64
}

type questionEntry struct {
	question domain.PendingQuestion
	timer    *clock.Timer
}

// stop is called with the registry lock held. The timer may not be attached
// yet; its callback then finds the entry gone and does nothing.
func (e *questionEntry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

// QuestionRegistry holds the questions moderators have started but not yet
// sent. Every entry carries its own expiry timer, stopped when the entry is
// taken or the registry is closed.
type QuestionRegistry struct {
	clock   clock.Clock
	timeout time.Duration

	mu      sync.Mutex
	entries map[questionKey]*questionEntry
	closed  bool
}

func NewQuestionRegistry(clk clock.Clock, timeout time.Duration) *QuestionRegistry {
	return &QuestionRegistry{
		clock:   clk,
		timeout: timeout,
		entries: make(map[questionKey]*questionEntry),
	}
}

// Add registers q. onExpire runs on the timer goroutine if the entry is
// still present when the timeout fires.
func (r *QuestionRegistry) Add(q domain.PendingQuestion, onExpire func(domain.PendingQuestion)) {
	key := questionKey{moderatorID: q.ModeratorID, promptMessageID: q.PromptMessageID}
	entry := &questionEntry{question: q}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if old, ok := r.entries[key]; ok {
		old.stop()
	}
	r.entries[key] = entry
	r.updateGauge()
	r.mu.Unlock()

	timer := r.clock.AfterFunc(r.timeout, func() {
		r.mu.Lock()
		current, ok := r.entries[key]
		if !ok || current != entry {
			r.mu.Unlock()
			return
		}
		delete(r.entries, key)
		r.updateGauge()
		r.mu.Unlock()

		if onExpire != nil {
			onExpire(q)
		}
	})

	r.mu.Lock()
	entry.timer = timer
	r.mu.Unlock()
}

// ForModerator returns the moderator's open questions, oldest first.
func (r *QuestionRegistry) ForModerator(moderatorID int64) []domain.PendingQuestion {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.PendingQuestion
	for key, entry := range r.entries {
		if key.moderatorID == moderatorID {
			out = append(out, entry.question)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PromptMessageID < out[j].PromptMessageID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Take removes and returns every entry the moderator holds for the applicant.
func (r *QuestionRegistry) Take(moderatorID, applicantID int64) []domain.PendingQuestion {
	r.mu.Lock()
	defer r.mu.Unlock()

	var taken []domain.PendingQuestion
	for key, entry := range r.entries {
		if key.moderatorID != moderatorID || entry.question.ApplicantID != applicantID {
			continue
		}
		entry.stop()
		delete(r.entries, key)
		taken = append(taken, entry.question)
	}
	r.updateGauge()
	return taken
}

func (r *QuestionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every timer. Entries added afterwards are ignored.
func (r *QuestionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.entries {
		entry.stop()
		delete(r.entries, key)
	}
	r.closed = true
	r.updateGauge()
}

func (r *QuestionRegistry) updateGauge() {
	metrics.PendingQuestions.Set(float64(len(r.entries)))
}
