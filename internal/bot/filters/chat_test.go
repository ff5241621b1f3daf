package filters

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

const auditChat = int64(-100500)

type lookup map[int64]*members.Member

func (l lookup) GetMemberByTelegramID(_ context.Context, id int64) (*members.Member, error) {
	if id == 666 {
		return nil, errors.New("db down")
	}
	if m, ok := l[id]; ok {
		return m, nil
	}
	return nil, common.ErrUserNotFound
}

func message(chatID int64, chatType string, fromID int64) *telego.Message {
	return &telego.Message{
		Chat: telego.Chat{ID: chatID, Type: chatType},
		From: &telego.User{ID: fromID},
	}
}

func TestChatFilter(t *testing.T) {
	alice := &members.Member{UserID: "alice", TelegramID: 1}
	f := NewChatFilter(auditChat, lookup{1: alice})
	ctx := context.Background()

	tests := []struct {
		name       string
		msg        *telego.Message
		wantAllow  bool
		wantMember *members.Member
		wantReply  string
	}{
		{"linked member in DM", message(1, telego.ChatTypePrivate, 1), true, alice, ""},
		{"linked member in audit chat", message(auditChat, telego.ChatTypeSupergroup, 1), true, alice, ""},
		{"stranger in audit chat", message(auditChat, telego.ChatTypeSupergroup, 2), true, nil, ""},
		{"stranger in DM", message(2, telego.ChatTypePrivate, 2), false, nil, notLinkedReply},
		{"other group", message(-42, telego.ChatTypeGroup, 1), false, nil, ""},
		{"lookup error", message(666, telego.ChatTypePrivate, 666), false, nil, ""},
		{"no sender", &telego.Message{Chat: telego.Chat{ID: auditChat, Type: telego.ChatTypeChannel}}, false, nil, ""},
		{"nil message", nil, false, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.CheckAccess(ctx, tt.msg)
			assert.Equal(t, tt.wantAllow, res.Allowed)
			assert.Equal(t, tt.wantMember, res.Member)
			assert.Equal(t, tt.wantReply, res.Reply)
		})
	}
}

func TestChatFilterWithoutAuditChat(t *testing.T) {
	f := NewChatFilter(0, lookup{})
	res := f.CheckAccess(context.Background(), message(0, telego.ChatTypeGroup, 2))
	assert.False(t, res.Allowed)
}
