package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanEditWindow(t *testing.T) {
	created := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{Model: Model{CreatedAt: created}}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"just sent", created, true},
		{"one second before the window closes", created.Add(EditWindow - time.Second), true},
		{"exactly at the window", created.Add(EditWindow), false},
		{"one second past the window", created.Add(EditWindow + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, msg.CanEdit(tt.at))
		})
	}
}

func TestCanDeleteWindow(t *testing.T) {
	created := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{Model: Model{CreatedAt: created}}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"just sent", created, true},
		{"one second before the window closes", created.Add(DeleteWindow - time.Second), true},
		{"exactly at the window", created.Add(DeleteWindow), false},
		{"one second past the window", created.Add(DeleteWindow + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, msg.CanDelete(tt.at))
		})
	}
}

func TestDeleteWindowOutlastsEditWindow(t *testing.T) {
	created := time.Now()
	msg := &Message{Model: Model{CreatedAt: created}}
	at := created.Add(30 * time.Minute)

	assert.False(t, msg.CanEdit(at))
	assert.True(t, msg.CanDelete(at))
}

func TestConversationParticipants(t *testing.T) {
	conv := &Conversation{Participants: []User{
		{Model: Model{ID: 1}},
		{Model: Model{ID: 2}},
	}}

	assert.True(t, conv.HasParticipant(1))
	assert.False(t, conv.HasParticipant(3))
	assert.Equal(t, []uint{2}, conv.OtherParticipantIDs(1))
}
