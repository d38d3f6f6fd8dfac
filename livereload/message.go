package livereload

import (
	"encoding/json"
	"time"
)

// Action defines how the browser reacts to a changed file.
type Action string

const (
	// Ignore drops the change.
	Ignore Action = "ignore"
	// Reload reloads the whole page.
	Reload Action = "reload"
	// InjectStyle replaces the stylesheet or script in place without a reload.
	InjectStyle Action = "inject"
)

// Kind of a filesystem change.
const (
	KindCreate = "create"
	KindModify = "modify"
	KindDelete = "delete"
)

// Message is the JSON document sent to browsers.
type Message struct {
	Type string  `json:"type"`
	Data Changes `json:"data,omitempty"`
}

// Changes is a list of Change.
type Changes []Change

// Change describes one changed file as seen by the browser.
type Change struct {
	// Kind is one of "create", "modify", "delete".
	Kind string `json:"kind"`
	// Path is the URL path of the file, "*" for everything.
	Path string `json:"path"`
	// Modified is the modification time of the file, zero for deletes.
	// A zero time is left out of the JSON document.
	Modified time.Time `json:"modified"`
	// Action is what the browser should do about it.
	Action Action `json:"action"`
}

func (c Change) MarshalJSON() ([]byte, error) {
	type change Change
	var modified *time.Time
	if !c.Modified.IsZero() {
		modified = &c.Modified
	}
	return json.Marshal(struct {
		change
		Modified *time.Time `json:"modified,omitempty"`
	}{change(c), modified})
}

// Reloads reports whether any change asks for a full page reload.
func (cs Changes) Reloads() bool {
	for _, c := range cs {
		if c.Action == Reload {
			return true
		}
	}
	return false
}
