package player

import "sync"

// Registry is the per-guild player map. It is owned by the bot that also
// owns the command dispatch loop and is passed to whatever needs it; there
// is no package-level instance.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	factory func(guildID string) *Player
}

func NewRegistry(factory func(guildID string) *Player) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		factory: factory,
	}
}

// GetOrCreate returns the guild's player, creating one on first use. A
// created player removes itself from the registry when it is destroyed.
func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}

	p := r.factory(guildID)
	p.onDestroy = func() { r.Remove(guildID) }
	r.players[guildID] = p
	return p
}

// Get returns the guild's player without creating one.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, guildID)
}

// GuildIDs returns the guilds that currently have a player.
func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
