// validation.go - Custom binding tags for role names and device types

package handlers

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"go-home-dashboard/models"
)

var registerOnce sync.Once
var registerErr error

// RegisterValidators adds the rolename and devicetype tags to gin's validator.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("rolename", validateRoleName); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterValidation("devicetype", validateDeviceType)
	})
	return registerErr
}

// validateRoleName accepts Admin or User.
func validateRoleName(fl validator.FieldLevel) bool {
	return models.RoleName(fl.Field().String()).Valid()
}

// validateDeviceType accepts the known device types.
func validateDeviceType(fl validator.FieldLevel) bool {
	_, err := models.ParseDeviceType(fl.Field().String())
	return err == nil
}
