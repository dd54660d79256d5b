package service

import (
	"github.com/go-playground/validator/v10"
	"github.com/resonatehq/resmon/internal/util"
)

var Interval validator.Func = func(fl validator.FieldLevel) bool {
	_, err := util.ParseInterval(fl.Field().String())
	return err == nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("interval", Interval); err != nil {
		panic(err)
	}
	return v
}
