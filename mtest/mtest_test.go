package mtest

import (
	. "testing"
)

func TestRandBytes(t *T) {
	b := RandBytes(16)
	if len(b) != 16 {
		t.Fatalf("RandBytes(16) returned %d bytes", len(b))
	}
}

func TestRandHex(t *T) {
	s := RandHex(16)
	if len(s) != 16 {
		t.Fatalf("RandHex(16) returned string of length %d", len(s))
	}
}

func TestRandElement(t *T) {
	slice := []int{1, 2, 3, 4, 5}
	for i := 0; i < 50; i++ {
		el := RandElement(slice, nil).(int)
		if el < 1 || el > 5 {
			t.Fatalf("RandElement returned out-of-range value: %d", el)
		}
	}

	// with a weight function which always picks the last element
	weight := func(i int) uint64 {
		if i == len(slice)-1 {
			return 1
		}
		return 0
	}
	el := RandElement(slice, weight).(int)
	if el != 5 {
		t.Fatalf("weighted RandElement returned %d, expected 5", el)
	}
}
