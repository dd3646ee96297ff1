package dto

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"produceledger/internal/domain/documents"
)

// RegisterValidators adds the custom binding tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}
	return v.RegisterValidation("payment_mode", validPaymentMode)
}

// validPaymentMode accepts account_pay, upi and cash in any case.
func validPaymentMode(fl validator.FieldLevel) bool {
	_, err := documents.ParsePaymentMode(fl.Field().String())
	return err == nil
}
