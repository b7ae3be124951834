package profile

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/scale.report/internal/fsutil"
	"github.com/banshee-data/scale.report/internal/metrics"
	"github.com/banshee-data/scale.report/internal/monitoring"
)

// Sentinel errors returned by Store mutations.
var (
	ErrNotFound = fmt.Errorf("profile not found")
	ErrExists   = fmt.Errorf("profile already exists")
)

// fileDoc is the on-disk document shape.
type fileDoc struct {
	Users []profileJSON `json:"users"`
}

// profileJSON is one on-disk user record. Birthdate and Age are mutually
// exclusive; old files carry "age", new ones "birthdate".
type profileJSON struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Height      int    `json:"height"`
	Sex         string `json:"sex"`
	Birthdate   string `json:"birthdate,omitempty"`
	Age         *int   `json:"age,omitempty"`
}

// Store reads and writes the profiles JSON file. Reads between reloads are
// served from an in-memory snapshot; Reload replaces the snapshot from
// disk so external edits become visible at cycle boundaries.
type Store struct {
	fs   fsutil.FileSystem
	path string

	mu       sync.RWMutex
	profiles []Profile
}

// NewStore returns a store over the given filesystem and path. The file is
// not read until Reload is called; a missing file reads as zero profiles.
func NewStore(fs fsutil.FileSystem, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Reload replaces the in-memory snapshot from disk. A missing file is not
// an error; it yields an empty profile set.
func (s *Store) Reload() error {
	if !s.fs.Exists(s.path) {
		s.mu.Lock()
		s.profiles = nil
		s.mu.Unlock()
		return nil
	}

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	// A corrupt document loads as zero profiles rather than wedging the
	// daemon; the file stays untouched for the operator to repair.
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		monitoring.Logf("profiles: %s is not valid JSON, loading no profiles: %v", s.path, err)
		s.mu.Lock()
		s.profiles = nil
		s.mu.Unlock()
		return nil
	}

	profiles := make([]Profile, 0, len(doc.Users))
	for _, u := range doc.Users {
		p, err := fromJSON(u)
		if err != nil {
			return fmt.Errorf("profile %q: %w", u.Username, err)
		}
		profiles = append(profiles, p)
	}

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()
	return nil
}

// All returns the current snapshot in file order.
func (s *Store) All() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// Usernames returns the usernames of the current snapshot in file order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.Username
	}
	return out
}

// Get returns the profile for a username from the current snapshot.
func (s *Store) Get(username string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Username == username {
			return p, true
		}
	}
	return Profile{}, false
}

// Add validates and appends a new profile, then rewrites the file.
func (s *Store) Add(p Profile, now time.Time) error {
	if err := p.Validate(now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.Username == p.Username {
			return fmt.Errorf("%w: %s", ErrExists, p.Username)
		}
	}
	s.profiles = append(s.profiles, p)
	return s.saveLocked()
}

// Update validates and replaces the profile with the same username, then
// rewrites the file.
func (s *Store) Update(p Profile, now time.Time) error {
	if err := p.Validate(now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.profiles {
		if existing.Username == p.Username {
			s.profiles[i] = p
			return s.saveLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, p.Username)
}

// Delete removes the profile with the given username and rewrites the file.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.profiles {
		if existing.Username == username {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return s.saveLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, username)
}

func (s *Store) saveLocked() error {
	doc := fileDoc{Users: make([]profileJSON, 0, len(s.profiles))}
	for _, p := range s.profiles {
		doc.Users = append(doc.Users, toJSON(p))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := s.fs.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

func fromJSON(u profileJSON) (Profile, error) {
	sex, err := metrics.ParseSex(u.Sex)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		HeightCm:    u.Height,
		Sex:         sex,
	}

	switch {
	case u.Birthdate != "":
		bd, err := time.Parse(BirthdateLayout, u.Birthdate)
		if err != nil {
			// Keep the profile usable; age resolves to 0 until the file
			// is fixed.
			monitoring.Logf("profiles: %q has unparseable birthdate %q, treating age as 0", u.Username, u.Birthdate)
		} else {
			p.Birthdate = bd
		}
	case u.Age != nil:
		p.StoredAge = *u.Age
	default:
		return Profile{}, fmt.Errorf("profile needs a birthdate or an age")
	}
	return p, nil
}

func toJSON(p Profile) profileJSON {
	u := profileJSON{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Height:      p.HeightCm,
		Sex:         p.Sex.String(),
	}
	if !p.Birthdate.IsZero() {
		u.Birthdate = p.Birthdate.Format(BirthdateLayout)
	} else {
		age := p.StoredAge
		u.Age = &age
	}
	return u
}
