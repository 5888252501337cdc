package catalog

import "errors"

var (
	// ErrItemNotFound is returned when a menu item id has no row.
	ErrItemNotFound = errors.New("menu item not found")
)
