package band

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
)

// Note is one scheduled input event in a chart: a lane and a time offset in
// seconds from the round's clock anchor.
type Note struct {
	Time float64 `json:"time"`
	Lane int     `json:"lane"`
}

// RoleSlot is one playable role declared by a song manifest.
type RoleSlot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Manifest describes one song: its metadata and the roles it offers.
type Manifest struct {
	Title  string     `json:"title"`
	Artist string     `json:"artist"`
	Roles  []RoleSlot `json:"roles"`
}

// SongInfo is one entry of the catalog index.
type SongInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Catalog reads songs, manifests and per-role charts from a filesystem
// laid out as:
//
//	songs.json
//	<song>/manifest.json
//	<song>/chart_<role>.json
type Catalog struct {
	fsys fs.FS
}

// NewCatalog wraps a chart filesystem.
func NewCatalog(fsys fs.FS) *Catalog {
	return &Catalog{fsys: fsys}
}

// Songs returns the catalog index.
func (c *Catalog) Songs() ([]SongInfo, error) {
	data, err := fs.ReadFile(c.fsys, "songs.json")
	if err != nil {
		return nil, fmt.Errorf("read song index: %w", err)
	}
	var songs []SongInfo
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("parse song index: %w", err)
	}
	return songs, nil
}

// Manifest returns the manifest for one song.
func (c *Catalog) Manifest(song string) (*Manifest, error) {
	data, err := fs.ReadFile(c.fsys, song+"/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("read manifest for %s: %w", song, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", song, err)
	}
	if len(m.Roles) == 0 {
		return nil, fmt.Errorf("manifest for %s declares no roles", song)
	}
	return &m, nil
}

// Chart returns the ordered note list for one role of one song. Notes are
// validated and sorted by time.
func (c *Catalog) Chart(song, role string) ([]Note, error) {
	name := fmt.Sprintf("%s/chart_%s.json", song, role)
	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read chart %s: %w", name, err)
	}
	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("parse chart %s: %w", name, err)
	}
	for i, n := range notes {
		if n.Lane < 0 || n.Lane >= NumLanes {
			return nil, fmt.Errorf("chart %s: note %d has invalid lane %d", name, i, n.Lane)
		}
		if n.Time < 0 {
			return nil, fmt.Errorf("chart %s: note %d has negative time", name, i)
		}
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	return notes, nil
}
