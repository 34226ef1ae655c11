package model

import "testing"

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		name       string
		input      ListOptions
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListOptions{Limit: 0}, 20, 0},
		{"negative limit", ListOptions{Limit: -5}, 20, 0},
		{"over max", ListOptions{Limit: 200}, 100, 0},
		{"valid", ListOptions{Limit: 50, Offset: 150}, 50, 150},
		{"negative offset", ListOptions{Limit: 10, Offset: -3}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Clamp()
			if tt.input.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.input.Limit, tt.wantLimit)
			}
			if tt.input.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tt.input.Offset, tt.wantOffset)
			}
		})
	}
}

func TestDefaultListOptions(t *testing.T) {
	opts := DefaultListOptions()
	if opts.Limit != 20 {
		t.Errorf("Limit = %d, want 20", opts.Limit)
	}
	if opts.State != "" {
		t.Errorf("State = %q, want empty", opts.State)
	}
}

func TestListOptions_Page(t *testing.T) {
	tests := []struct {
		name     string
		opts     ListOptions
		total    int
		wantMore bool
	}{
		{"first of several", ListOptions{Limit: 2}, 5, true},
		{"exactly the last page", ListOptions{Limit: 2, Offset: 3}, 5, false},
		{"short last page", ListOptions{Limit: 2, Offset: 4}, 5, false},
		{"empty", ListOptions{Limit: 20}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := tt.opts.Page(tt.total)
			if pg.HasMore != tt.wantMore || pg.Total != tt.total || pg.Offset != tt.opts.Offset || pg.Limit != tt.opts.Limit {
				t.Errorf("Page(%d) = %+v", tt.total, pg)
			}
		})
	}
}
