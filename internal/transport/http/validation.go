package http

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/meetpoint-server/internal/core"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the "roomcode" binding tag to gin's validator.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return core.ValidRoomID(fl.Field().String())
		})
	})
}

// roomURI binds the :roomId path parameter.
type roomURI struct {
	RoomID string `uri:"roomId" binding:"required,roomcode"`
}
