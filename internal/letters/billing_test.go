package letters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillableUnitsForPageCount(t *testing.T) {
	cases := []struct {
		pages int
		units int
	}{
		{0, 0},
		{-1, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{9, 5},
		{10, 5},
		{11, 6},
		{12, 6},
		{25, 13},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.units, BillableUnitsForPageCount(tc.pages),
			"pages=%d", tc.pages)
	}
}
