// Package directory maintains the durable roster of organizational units
// and their responders. The roster is persisted as a JSON object mapping
// unit name to an ordered list of responder records, matching the on-disk
// format consumed by operators:
//
//	{"Engineering": [{"name": "Aziz", "chat_id": 42}]}
//
// Every mutation attempts a save before returning. A failed save is
// reported to the caller but the in-memory mutation is kept.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/aloqahq/aloqa/internal/fault"
)

// Responder is a staff identity assigned to handle requests for a unit.
type Responder struct {
	Name   string `json:"name"`
	ChatID int64  `json:"chat_id"`
}

// Store holds the in-memory roster and its backing file path. Safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	path  string
	units map[string][]Responder
	order []string // unit names in file order
}

// Load reads the roster file at path. A missing file yields an empty
// directory. A malformed file also yields an empty directory; the parse
// failure is logged but not fatal, so a damaged roster never blocks
// startup.
func Load(path string) *Store {
	s := &Store{
		path:  path,
		units: make(map[string][]Responder),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("directory: read %s: %v (starting empty)", path, err)
		}
		return s
	}

	units, order, err := parseRoster(data)
	if err != nil {
		log.Printf("directory: parse %s: %v (starting empty)", path, err)
		return s
	}
	s.units = units
	s.order = order
	return s
}

// parseRoster decodes the roster JSON, preserving the order in which unit
// keys appear in the file. encoding/json map decoding loses key order, so
// the top-level object is walked token by token.
func parseRoster(data []byte) (map[string][]Responder, []string, error) {
	units := make(map[string][]Responder)
	var order []string

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected top-level object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		unit := keyTok.(string)

		var responders []Responder
		if err := dec.Decode(&responders); err != nil {
			return nil, nil, fmt.Errorf("unit %q: %w", unit, err)
		}
		if _, dup := units[unit]; !dup {
			order = append(order, unit)
		}
		units[unit] = responders
	}
	return units, order, nil
}

// Save serializes the full roster to the backing file. The write is
// atomic: a temp file is written and renamed into place.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := s.marshalLocked()
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("directory: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("directory: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("directory: rename %s: %w", s.path, err)
	}
	return nil
}

// marshalLocked renders the roster with units in display order. Callers
// must hold at least a read lock.
func (s *Store) marshalLocked() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, unit := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(unit)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		responders := s.units[unit]
		if responders == nil {
			responders = []Responder{}
		}
		val, err := json.Marshal(responders)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Units returns unit names in display order.
func (s *Store) Units() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// HasUnit reports whether a unit exists.
func (s *Store) HasUnit(unit string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.units[unit]
	return ok
}

// Responders returns the ordered responder list for a unit.
func (s *Store) Responders(unit string) []Responder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.units[unit]
	out := make([]Responder, len(src))
	copy(out, src)
	return out
}

// HasResponder reports whether the unit contains a responder with the
// given chat id.
func (s *Store) HasResponder(unit string, chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.units[unit] {
		if r.ChatID == chatID {
			return true
		}
	}
	return false
}

// FindByChatID looks up a responder anywhere in the directory. Chat ids
// are unique across the whole roster, so at most one responder matches.
func (s *Store) FindByChatID(chatID int64) (unit string, r Responder, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.order {
		for _, resp := range s.units[u] {
			if resp.ChatID == chatID {
				return u, resp, true
			}
		}
	}
	return "", Responder{}, false
}

// AddUnit creates an empty unit. Adding an existing unit is invalid.
func (s *Store) AddUnit(unit string) error {
	s.mu.Lock()
	if _, exists := s.units[unit]; exists {
		s.mu.Unlock()
		return fmt.Errorf("directory: unit %q already exists: %w", unit, fault.ErrInvalidInput)
	}
	s.units[unit] = []Responder{}
	s.order = append(s.order, unit)
	s.mu.Unlock()

	return s.saveAfterMutation()
}

// AddResponder appends a responder to an existing unit. The chat id must
// be unique across the entire directory.
func (s *Store) AddResponder(unit, name string, chatID int64) error {
	s.mu.Lock()
	if _, exists := s.units[unit]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("directory: unit %q: %w", unit, fault.ErrNotFound)
	}
	if u, dup := s.chatIDOwnerLocked(chatID); dup {
		s.mu.Unlock()
		return fmt.Errorf("directory: chat id %d already assigned in unit %q: %w",
			chatID, u, fault.ErrInvalidInput)
	}
	s.units[unit] = append(s.units[unit], Responder{Name: name, ChatID: chatID})
	s.mu.Unlock()

	return s.saveAfterMutation()
}

// RenameResponder changes the display name of the responder identified by
// chat id within a unit. The responder is re-resolved by chat id at write
// time, so a roster mutated since the caller captured the id fails with
// not-found instead of editing the wrong entry.
func (s *Store) RenameResponder(unit string, chatID int64, newName string) error {
	s.mu.Lock()
	idx, err := s.resolveLocked(unit, chatID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.units[unit][idx].Name = newName
	s.mu.Unlock()

	return s.saveAfterMutation()
}

// SetResponderChatID changes a responder's chat id, keyed by the old id.
// The new id must remain unique across the directory.
func (s *Store) SetResponderChatID(unit string, chatID, newID int64) error {
	s.mu.Lock()
	idx, err := s.resolveLocked(unit, chatID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if newID != chatID {
		if u, dup := s.chatIDOwnerLocked(newID); dup {
			s.mu.Unlock()
			return fmt.Errorf("directory: chat id %d already assigned in unit %q: %w",
				newID, u, fault.ErrInvalidInput)
		}
	}
	s.units[unit][idx].ChatID = newID
	s.mu.Unlock()

	return s.saveAfterMutation()
}

// resolveLocked finds the position of the responder with chatID in unit.
func (s *Store) resolveLocked(unit string, chatID int64) (int, error) {
	responders, exists := s.units[unit]
	if !exists {
		return 0, fmt.Errorf("directory: unit %q: %w", unit, fault.ErrNotFound)
	}
	for i, r := range responders {
		if r.ChatID == chatID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("directory: responder %d in unit %q: %w", chatID, unit, fault.ErrNotFound)
}

// chatIDOwnerLocked returns the unit owning chatID, if any.
func (s *Store) chatIDOwnerLocked(chatID int64) (string, bool) {
	for _, u := range s.order {
		for _, r := range s.units[u] {
			if r.ChatID == chatID {
				return u, true
			}
		}
	}
	return "", false
}

// saveAfterMutation persists the roster. A save failure does not roll
// back the in-memory mutation; the store stays authoritative and the
// error is surfaced so the caller can warn.
func (s *Store) saveAfterMutation() error {
	if err := s.Save(); err != nil {
		log.Printf("directory: persist after mutation: %v", err)
		return err
	}
	return nil
}
