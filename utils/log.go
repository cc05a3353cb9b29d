package utils

import (
	"fmt"

	"github.com/rs/zerolog"
)

func ToZeroLogArray[T fmt.Stringer](arr []T) *zerolog.Array {
	ret := zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(elem.String())
	}

	return ret
}

// Strings renders every element with its String method, for zerolog's Strs.
func Strings[T fmt.Stringer](arr []T) []string {
	out := make([]string, len(arr))

	for i, elem := range arr {
		out[i] = elem.String()
	}

	return out
}
