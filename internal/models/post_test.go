package models

import (
	"testing"
	"time"
)

func TestPostStatusValid(t *testing.T) {
	tests := []struct {
		status PostStatus
		want   bool
	}{
		{PostStatusDraft, true},
		{PostStatusPublished, true},
		{PostStatus(""), false},
		{PostStatus("archived"), false},
		{PostStatus("PUBLISHED"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("PostStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestPostIsVisible(t *testing.T) {
	tests := []struct {
		name    string
		status  PostStatus
		deleted bool
		want    bool
	}{
		{name: "published active", status: PostStatusPublished, want: true},
		{name: "published trashed", status: PostStatusPublished, deleted: true, want: false},
		{name: "draft active", status: PostStatusDraft, want: false},
		{name: "draft trashed", status: PostStatusDraft, deleted: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Post{Status: tt.status, Deleted: tt.deleted}
			if got := p.IsVisible(); got != tt.want {
				t.Errorf("IsVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostApplyDefaults(t *testing.T) {
	t.Run("fills missing fields", func(t *testing.T) {
		p := &Post{}
		p.ApplyDefaults()

		if p.Status != PostStatusDraft {
			t.Errorf("Status = %q, want %q", p.Status, PostStatusDraft)
		}
		if p.Tags == nil {
			t.Error("Tags should be an empty slice, got nil")
		}
		if p.Categories == nil {
			t.Error("Categories should be an empty slice, got nil")
		}
		if p.Deleted {
			t.Error("Deleted should default to false")
		}
	})

	t.Run("keeps explicit status", func(t *testing.T) {
		p := &Post{Status: PostStatusPublished}
		p.ApplyDefaults()
		if p.Status != PostStatusPublished {
			t.Errorf("Status = %q, want %q", p.Status, PostStatusPublished)
		}
	})

	t.Run("clears stray deletedAt on active post", func(t *testing.T) {
		now := time.Now()
		p := &Post{DeletedAt: &now}
		p.ApplyDefaults()
		if p.DeletedAt != nil {
			t.Errorf("DeletedAt = %v, want nil", p.DeletedAt)
		}
	})
}
