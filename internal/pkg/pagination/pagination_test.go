package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Pagination
	}{
		{"defaults", 0, 0, Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"third page", 3, 10, Pagination{Page: 3, Limit: 10, Offset: 20}},
		{"clamped limit", 2, 1000, Pagination{Page: 2, Limit: 100, Offset: 100}},
		{"negative page", -4, 5, Pagination{Page: 1, Limit: 5, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.page, tt.limit))
		})
	}
}
