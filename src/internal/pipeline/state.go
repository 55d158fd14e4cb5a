package pipeline

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"refcheck/src/internal/schema"
)

// PaletteSize is the number of distinct ColorIndex values.
const PaletteSize = 8

// State is the run-owned extraction store. Extractions holds every finalized
// record (error records included); Results holds those whose validation has
// settled. The line index is derived and only changes on Rebuild.
type State struct {
	RunID       string
	Extractions []*schema.Extraction
	Results     []*schema.Extraction

	mu        sync.Mutex
	nextIndex int
	byLine    map[int][]string
}

// NewState returns an empty State with a fresh run id.
func NewState() *State {
	return &State{RunID: uuid.NewString()}
}

// identity hands out the next id and index. Indices are never reused.
func (s *State) identity() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.nextIndex
	s.nextIndex++
	return uuid.NewString(), idx
}

func (s *State) appendExtraction(e *schema.Extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Extractions = append(s.Extractions, e)
}

func (s *State) appendResult(e *schema.Extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, e)
}

// Rebuild sorts both lists by index and recomputes the line index.
func (s *State) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIndex := func(list []*schema.Extraction) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Index < list[j].Index })
	}
	byIndex(s.Extractions)
	byIndex(s.Results)
	s.byLine = map[int][]string{}
	for _, e := range s.Extractions {
		if !e.Located() {
			continue
		}
		for line := e.AbsoluteLineStart; line <= e.AbsoluteLineEnd; line++ {
			s.byLine[line] = append(s.byLine[line], e.ID)
		}
	}
}

// IDsOnLine returns the ids of extractions covering the 1-based line.
func (s *State) IDsOnLine(line int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.byLine[line]...)
}

// Counts tallies the final extractions by validation status.
func (s *State) Counts() map[schema.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[schema.Status]int{}
	for _, e := range s.Extractions {
		if !e.IsError() {
			out[e.ValidationStatus]++
		}
	}
	return out
}
