package validators

import (
	"regexp"
	"strings"

	"github.com/BajKull/Valks-backend/pkg/errors"
)

// RoomValidator validates user-supplied room attributes
type RoomValidator struct {
	nameMaxLength     int
	categoryMaxLength int
	maxCapacity       int
	namePattern       *regexp.Regexp
}

// NewRoomValidator creates a new room validator with default rules
func NewRoomValidator() *RoomValidator {
	return &RoomValidator{
		nameMaxLength:     32,
		categoryMaxLength: 32,
		maxCapacity:       1000,
		namePattern:       regexp.MustCompile(`^[A-Za-z0-9 ]+$`),
	}
}

// ValidateNewRoom checks name and category in a fixed order and reports
// only the first rule that fails.
func (v *RoomValidator) ValidateNewRoom(name, category string) error {
	if err := v.validateName(name); err != nil {
		return err
	}
	return v.validateCategory(category)
}

// ValidateCapacity rejects negative sizes and sizes above the hard limit.
// Zero means the caller did not ask for a size.
func (v *RoomValidator) ValidateCapacity(capacity int) error {
	if capacity < 0 || capacity > v.maxCapacity {
		return errors.NewValidation(errors.CodeInvalidInput, "Invalid channel size.")
	}
	return nil
}

// A field holding only whitespace counts as empty for both name and
// category.
func (v *RoomValidator) validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidation(errors.CodeEmptyName, "Name can't be empty.")
	}
	if !v.namePattern.MatchString(name) {
		return errors.NewValidation(errors.CodeIllegalName, "Name can't containt any special symbols.")
	}
	if len(name) > v.nameMaxLength {
		return errors.NewValidation(errors.CodeNameTooLong, "Name can't be longer than 32 characters.")
	}
	return nil
}

func (v *RoomValidator) validateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return errors.NewValidation(errors.CodeEmptyCategory, "Category can't be empty.")
	}
	if len(category) > v.categoryMaxLength {
		return errors.NewValidation(errors.CodeCategoryTooLong, "Category can't be longer than 32 characters.")
	}
	return nil
}
