package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"testing"
)

func TestReverse(t *testing.T) {
	in := []byte{0xa4, 0xc1, 0x38, 0x01, 0x02, 0x03}
	got := Reverse(in)
	want := []byte{0x03, 0x02, 0x01, 0x38, 0xc1, 0xa4}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+#v, wanted %+#v", got, want)
	}

	if in[0] != 0xa4 {
		t.Fatalf("Reverse() modified its input: %+#v", in)
	}
}

func TestIsCanceled(t *testing.T) {
	tests := map[error]bool{
		context.Canceled: true,
		fmt.Errorf("scan: %w", context.DeadlineExceeded): true,
		errors.New("hci: device busy"):                   false,
		nil:                                              false,
	}

	for err, want := range tests {
		if got := IsCanceled(err); got != want {
			t.Fatalf("IsCanceled(%v): got %v, wanted %v", err, got, want)
		}
	}
}

func TestStrings(t *testing.T) {
	addr, _ := net.ParseMAC("a4:c1:38:01:02:03")
	got := Strings([]net.HardwareAddr{addr})
	want := []string{"a4:c1:38:01:02:03"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+#v, wanted %+#v", got, want)
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"fe95": 1, "181a": 2, "fcd2": 3})
	want := []string{"181a", "fcd2", "fe95"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+#v, wanted %+#v", got, want)
	}

	if keys := SortedKeys(map[uint16][]byte(nil)); len(keys) != 0 {
		t.Fatalf("got %+#v for a nil map, wanted no keys", keys)
	}
}
