package types

import (
	"reflect"
	"testing"
)

func TestMaxPartNumber(t *testing.T) {
	parts := []PartRecord{
		{PartNumber: 3},
		{PartNumber: 1},
		{PartNumber: 7},
	}
	if got := MaxPartNumber(parts); got != 7 {
		t.Errorf("MaxPartNumber() = %d, want 7", got)
	}
	if got := MaxPartNumber(nil); got != 0 {
		t.Errorf("MaxPartNumber(nil) = %d, want 0", got)
	}
}

func TestPartNumbers(t *testing.T) {
	parts := []PartRecord{
		{PartNumber: 1},
		{PartNumber: 2},
		{PartNumber: 5},
	}
	if got := PartNumbers(parts); !reflect.DeepEqual(got, []int{1, 2, 5}) {
		t.Errorf("PartNumbers() = %v, want [1 2 5]", got)
	}
}

func TestPageStateString(t *testing.T) {
	if got := StateNeedsPassword.String(); got != string(StateNeedsPassword) {
		t.Errorf("String() = %q, want %q", got, string(StateNeedsPassword))
	}
}
