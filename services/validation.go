package services

import (
	"github.com/amoreldmija/hospital/utils"
)

// ValidateInput runs struct validation and reports failures as a validation
// DomainError whose "fields" detail maps json field names to messages.
func ValidateInput(v interface{}) error {
	err := utils.ValidateStruct(v)
	if err == nil {
		return nil
	}
	if fields := utils.GetValidationFields(err); fields != nil {
		return ErrInvalidInput.WithDetail("fields", fields)
	}
	return NewDomainError(ErrorTypeValidation, "invalid input", err)
}
