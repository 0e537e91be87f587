package store

import (
	"strings"

	"contentsort/internal/model"
)

// Language returns the current content language.
func (db *DB) Language() string {
	if db == nil || strings.TrimSpace(db.lang) == "" {
		return DefaultLanguage
	}
	return db.lang
}

// SwitchLanguage makes lang the current content language and returns a func that
// restores the previous one. Callers defer the restore so every exit path, panics
// included, puts the prior language back:
//
//	defer db.SwitchLanguage(root.Language)()
//
// An empty lang keeps the current language.
func (db *DB) SwitchLanguage(lang string) (restore func()) {
	prev := db.lang
	if l := strings.TrimSpace(lang); l != "" {
		db.lang = l
	}
	return func() { db.lang = prev }
}

// DisplayName returns the item's label in the current content language.
func (db *DB) DisplayName(it *model.Item) string {
	return it.DisplayName(db.Language())
}
