package response

import "testing"

func TestNewPaginatedResponse(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		perPage   int
		wantPages int
	}{
		{"exact", 20, 10, 2},
		{"remainder", 21, 10, 3},
		{"empty", 0, 10, 0},
		{"no page size", 5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPaginatedResponse([]string{"a"}, 1, tt.perPage, tt.total)
			if got.Pagination.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", got.Pagination.TotalPages, tt.wantPages)
			}
			if got.Pagination.Total != tt.total || got.Pagination.Page != 1 || len(got.Data) != 1 {
				t.Errorf("Pagination = %+v", got.Pagination)
			}
		})
	}
}
