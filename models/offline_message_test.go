package models

import (
	"testing"
	"time"
)

func TestOfflineMessage_CanAdvanceTo(t *testing.T) {
	m := &OfflineMessage{Status: OfflineStatusPending}
	if !m.CanAdvanceTo(OfflineStatusSent) || !m.CanAdvanceTo(OfflineStatusReplied) {
		t.Fatal("forward moves must be allowed")
	}

	m.Status = OfflineStatusReplied
	if m.CanAdvanceTo(OfflineStatusSent) || m.CanAdvanceTo(OfflineStatusPending) {
		t.Fatal("backward moves must be rejected")
	}
	if m.CanAdvanceTo(OfflineStatusReplied) {
		t.Fatal("no-op move must be rejected")
	}
	if m.CanAdvanceTo("bogus") {
		t.Fatal("unknown status must be rejected")
	}
}

func TestChatSession_Resumable(t *testing.T) {
	s := &ChatSession{}
	if !s.Resumable() {
		t.Fatal("fresh session is resumable")
	}

	now := time.Now()
	s.DeletedAt = &now
	if s.Resumable() {
		t.Fatal("soft-deleted session is not resumable")
	}

	s = &ChatSession{Anonymized: true}
	if s.Resumable() {
		t.Fatal("anonymized session is not resumable")
	}
}
