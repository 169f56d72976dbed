package service

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// guildLocks serializes cycle transitions of one guild within the process.
type guildLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*sync.Mutex
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: make(map[snowflake.ID]*sync.Mutex)}
}

// lock acquires the guild's mutex and returns its release function.
func (g *guildLocks) lock(guildID snowflake.ID) func() {
	g.mu.Lock()
	m, ok := g.locks[guildID]
	if !ok {
		m = &sync.Mutex{}
		g.locks[guildID] = m
	}
	g.mu.Unlock()

	m.Lock()

	return m.Unlock
}
