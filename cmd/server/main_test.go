package main

import (
	"context"
	"testing"

	"github.com/kiliankoe/memebattles/internal/config"
	"github.com/kiliankoe/memebattles/internal/store"
)

func TestOpenLobbyStoreInMemory(t *testing.T) {
	lobbies, closeLobbies := openLobbyStore(context.Background(), config.Config{})
	if _, ok := lobbies.(*store.MemoryStore); !ok {
		t.Fatalf("expected a memory store without DATABASE_URL, got %T", lobbies)
	}
	if closeLobbies == nil {
		t.Fatal("close func must never be nil")
	}
	closeLobbies()
}
