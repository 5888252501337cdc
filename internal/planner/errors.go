package planner

import "errors"

var (
	// ErrPlanNotFound is returned when a plan id has no row for the profile.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrMealNotFound is returned when a meal id is not part of the plan.
	ErrMealNotFound = errors.New("plan meal not found")

	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid plan status")

	// ErrItemUnavailable is returned when a meal swap targets an item that
	// is unknown or currently off the menu.
	ErrItemUnavailable = errors.New("menu item unavailable")

	// ErrInvalidQuantity is returned for non-positive meal quantities.
	ErrInvalidQuantity = errors.New("meal quantity must be positive")
)
