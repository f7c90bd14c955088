package validation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BindForm binds the JSON body into an OrderFormInput. Validation is left to
// the caller. On a malformed body it writes a 400 and returns the error so the
// handler can short-circuit; a value of the wrong JSON type is reported
// against its field like any other validation failure.
func BindForm(c *gin.Context) (OrderFormInput, error) {
	var in OrderFormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			fe := typeMismatch(ute)
			WriteFieldErrors(c, fe)
			return OrderFormInput{}, fe
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return OrderFormInput{}, err
	}
	return in, nil
}

// WriteFieldErrors renders validation failures as a 400 with per-field messages.
func WriteFieldErrors(c *gin.Context, err error) {
	var fe FieldErrors
	if !errors.As(err, &fe) {
		fe = FieldErrors{"form": err.Error()}
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "validation_failed",
		"fields": fe,
	})
}
