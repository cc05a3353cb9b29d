package utils

import (
	"context"
	"errors"
)

func ErrorIsAnyOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsCanceled reports whether err comes from a context being cancelled or timing out.
func IsCanceled(err error) bool {
	return ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded)
}
