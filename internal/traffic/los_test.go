package traffic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeOccupancyBoundaries(t *testing.T) {
	tests := []struct {
		count int
		grade string
	}{
		{0, "A"},
		{3, "A"},
		{4, "B"},
		{6, "B"},
		{7, "C"},
		{10, "C"},
		{11, "D"},
		{15, "D"},
		{16, "E"},
		{22, "E"},
		{23, "F"},
		{100, "F"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("count %d", tc.count), func(t *testing.T) {
			assert.Equal(t, tc.grade, GradeOccupancy(tc.count).Grade)
		})
	}
}

func TestGradeCarriesDisplayFields(t *testing.T) {
	level := GradeOccupancy(0)
	assert.Equal(t, "A", level.Grade)
	assert.Equal(t, "#4ade80", level.Color)
	assert.Equal(t, "Free flow", level.Description)

	level = GradeOccupancy(30)
	assert.Equal(t, "F", level.Grade)
	assert.Equal(t, "#dc2626", level.Color)
}

func TestCongestionStatus(t *testing.T) {
	assert.Equal(t, "CLEAR", CongestionStatus(0))
	assert.Equal(t, "CLEAR", CongestionStatus(4))
	assert.Equal(t, "MODERATE", CongestionStatus(5))
	assert.Equal(t, "MODERATE", CongestionStatus(14))
	assert.Equal(t, "CONGESTED", CongestionStatus(15))
	assert.Equal(t, "CONGESTED", CongestionStatus(50))
}
