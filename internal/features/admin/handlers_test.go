package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/reputation-engine/internal/features/admin"
)

func TestHandlerIgnoresOtherCommands(t *testing.T) {
	svc, _ := newService(t, "hunter2")
	h := admin.NewHandler(svc)

	_, handled := h.HandleCommand(context.Background(), "root", "профиль", nil)
	assert.False(t, handled)
}

func TestHandlerLoginFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "hunter2")
	h := admin.NewHandler(svc)

	reply, handled := h.HandleCommand(ctx, "root", "login", nil)
	assert.True(t, handled)
	assert.Contains(t, reply, "Использование")

	reply, _ = h.HandleCommand(ctx, "root", "login", []string{"nope"})
	assert.Contains(t, reply, "неверный пароль")

	reply, _ = h.HandleCommand(ctx, "root", "сессия", nil)
	assert.Contains(t, reply, "сессия истекла")

	reply, _ = h.HandleCommand(ctx, "root", "login", []string{"hunter2"})
	assert.Contains(t, reply, "Аутентификация успешна")

	reply, _ = h.HandleCommand(ctx, "root", "сессия", nil)
	assert.Contains(t, reply, "активны")

	reply, _ = h.HandleCommand(ctx, "root", "logout", nil)
	assert.Contains(t, reply, "Сессия закрыта")

	reply, _ = h.HandleCommand(ctx, "root", "сессия", nil)
	assert.Contains(t, reply, "сессия истекла")
}

func TestHandlerRejectsNonOwner(t *testing.T) {
	svc, _ := newService(t, "hunter2")
	h := admin.NewHandler(svc)

	reply, handled := h.HandleCommand(context.Background(), "alice", "login", []string{"hunter2"})
	assert.True(t, handled)
	assert.Contains(t, reply, "нет прав владельца")
}

func TestHandlerWithoutPassword(t *testing.T) {
	svc, _ := newService(t, "")
	h := admin.NewHandler(svc)

	reply, _ := h.HandleCommand(context.Background(), "root", "login", []string{"x"})
	assert.Contains(t, reply, "не настроен")
}
