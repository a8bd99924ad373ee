package message

import (
	"testing"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/domain/category"
)

func TestNew(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := New(7, Draft{
		Role:     RoleAssistant,
		Text:     "A stack is a LIFO structure.",
		Category: category.ShortForm,
		Failed:   true,
	}, at)

	if m.ID() != 7 {
		t.Errorf("ID() = %d", m.ID())
	}
	if m.Role() != RoleAssistant {
		t.Errorf("Role() = %q", m.Role())
	}
	if m.Text() != "A stack is a LIFO structure." {
		t.Errorf("Text() = %q", m.Text())
	}
	if m.Category() != category.ShortForm {
		t.Errorf("Category() = %q", m.Category())
	}
	if !m.Failed() {
		t.Error("Failed() = false")
	}
	if !m.CreatedAt().Equal(at) {
		t.Errorf("CreatedAt() = %s", m.CreatedAt())
	}
}

func TestRole_IsValid(t *testing.T) {
	if !RoleUser.IsValid() || !RoleAssistant.IsValid() {
		t.Error("known roles must be valid")
	}
	if Role("system").IsValid() {
		t.Error(`"system".IsValid() = true`)
	}
}
