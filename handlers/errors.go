package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

const genericError = "An error occurred, please try again later."

// errorResponse hides internal error text from callers unless debug is on.
func errorResponse(c echo.Context, debug bool, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case resource.IsIntegrityError(err):
		status = http.StatusConflict
	}

	message := genericError
	if debug {
		message += " " + err.Error()
	}
	return c.JSON(status, map[string]string{"error": message})
}
