package model

import "time"

type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

// Item is a node in the content tree.
type Item struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId,omitempty"`

	// Name is the path segment; DisplayNames are per-language labels shown to editors.
	Name         string            `json:"name"`
	TemplateName string            `json:"templateName,omitempty"`
	Language     string            `json:"language,omitempty"`
	DisplayNames map[string]string `json:"displayNames,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`

	SortOrder int `json:"sortOrder"`

	Locked   bool    `json:"locked"`
	LockedBy *string `json:"lockedBy,omitempty"`
	ReadOnly bool    `json:"readOnly"`

	OwnerActorID string   `json:"ownerActorId"`
	Editors      []string `json:"editors,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Field returns the raw value of a named field ("" when unset).
func (it *Item) Field(name string) string {
	if it == nil || it.Fields == nil {
		return ""
	}
	return it.Fields[name]
}

// DisplayName returns the label for lang, falling back to Name.
func (it *Item) DisplayName(lang string) string {
	if it == nil {
		return ""
	}
	if it.DisplayNames != nil {
		if v := it.DisplayNames[lang]; v != "" {
			return v
		}
	}
	return it.Name
}

// Clone returns a deep copy so edits can be staged without touching the original.
func (it Item) Clone() Item {
	out := it
	if it.ParentID != nil {
		p := *it.ParentID
		out.ParentID = &p
	}
	if it.LockedBy != nil {
		l := *it.LockedBy
		out.LockedBy = &l
	}
	if it.DisplayNames != nil {
		out.DisplayNames = make(map[string]string, len(it.DisplayNames))
		for k, v := range it.DisplayNames {
			out.DisplayNames[k] = v
		}
	}
	if it.Fields != nil {
		out.Fields = make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			out.Fields[k] = v
		}
	}
	if it.Editors != nil {
		out.Editors = append([]string{}, it.Editors...)
	}
	return out
}

type Event struct {
	ID       string    `json:"id"`
	TS       time.Time `json:"ts"`
	ActorID  string    `json:"actorId"`
	Type     string    `json:"type"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload"`
}
