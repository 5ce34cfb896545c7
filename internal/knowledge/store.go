// Package knowledge holds the curated answer/paraphrase store backing the
// bot, persisted as a human-readable JSON document.
package knowledge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry pairs a canonical answer with the ordered list of question
// paraphrases that map to it.
type Entry struct {
	Answer    string
	Questions []string
}

// seedEntries is written when no persisted store exists yet.
var seedEntries = []Entry{
	{
		Answer:    "Пример ответа",
		Questions: []string{"Пример вопроса 1", "Пример вопроса 2"},
	},
}

// Store is a durable mapping of canonical answer to question paraphrases.
// Lookup iterates answers in insertion order; every mutation is flushed to
// disk before the call returns.
type Store struct {
	path string
	log  *slog.Logger

	mu      sync.RWMutex
	entries []Entry
	index   map[string]int // answer -> position in entries
}

// Open loads the store at path, creating parent directories and seeding an
// example entry when no file exists. A malformed or unreadable file degrades
// to an empty store with a logged diagnostic rather than failing startup.
func Open(path string, log *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("knowledge: store path must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{path: path, log: log}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("knowledge base directory not created", "dir", dir, "err", err)
		}
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.entries = cloneEntries(seedEntries)
		s.rebuildIndex()
		if err := s.flushLocked(); err != nil {
			log.Error("knowledge base seed not written", "path", path, "err", err)
		} else {
			log.Info("knowledge base seeded", "path", path)
		}
		return s, nil
	case err != nil:
		log.Error("knowledge base unreadable, starting empty", "path", path, "err", err)
		s.rebuildIndex()
		return s, nil
	}

	entries, err := decodeOrdered(raw)
	if err != nil {
		log.Error("knowledge base malformed, starting empty", "path", path, "err", err)
		s.rebuildIndex()
		return s, nil
	}
	s.entries = entries
	s.rebuildIndex()
	return s, nil
}

// FindAnswer matches question against every stored paraphrase, trimmed and
// case-folded. Confidence is 1.0 on a match and 0.0 otherwise; callers accept
// an answer only when confidence strictly exceeds their threshold. The first
// answer in insertion order wins.
func (s *Store) FindAnswer(question string) (string, float64) {
	needle := fold(question)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		for _, q := range e.Questions {
			if fold(q) == needle {
				return e.Answer, 1.0
			}
		}
	}
	return "", 0.0
}

// Add records question as a paraphrase of answer and flushes the store.
// Both sides are trimmed; the call is a no-op when either trims to empty or
// the paraphrase is already present under the answer. The duplicate check is
// deliberately case-sensitive while lookup is not.
//
// A flush failure is returned to the caller, but the in-memory mutation
// stands: memory remains authoritative until the next successful write.
func (s *Store) Add(question, answer string) error {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[answer]; ok {
		for _, q := range s.entries[i].Questions {
			if q == question {
				return nil
			}
		}
		s.entries[i].Questions = append(s.entries[i].Questions, question)
	} else {
		s.index[answer] = len(s.entries)
		s.entries = append(s.entries, Entry{Answer: answer, Questions: []string{question}})
	}

	if err := s.flushLocked(); err != nil {
		s.log.Error("knowledge base flush failed, in-memory state kept", "path", s.path, "err", err)
		return fmt.Errorf("knowledge: flush %s: %w", s.path, err)
	}
	s.log.Info("knowledge base entry saved", "question", question, "answer", snippet(answer))
	return nil
}

// Dump returns a defensive copy of every entry in insertion order.
func (s *Store) Dump() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Len returns the number of stored answers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) flushLocked() error {
	raw, err := encodeOrdered(s.entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

func (s *Store) rebuildIndex() {
	s.index = make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		s.index[e.Answer] = i
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{
			Answer:    e.Answer,
			Questions: append([]string(nil), e.Questions...),
		}
	}
	return out
}

func snippet(s string) string {
	const max = 50
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
