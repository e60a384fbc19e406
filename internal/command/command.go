package command

import (
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// SlashContext is what the runtime hands a command when executing it.
type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Logger  zerolog.Logger
}

// Command is a slash command the bot exposes.
type Command interface {
	Name() string
	Description() string
	SlashDefinition() *discordgo.ApplicationCommand
	Run(ctx *SlashContext) error
}

// Registry holds the bot's commands. Each bot owns its own instance.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Command)}
}

// Register adds a command, applying middlewares outermost-last.
func (r *Registry) Register(cmd Command, mws ...Middleware) {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds[cmd.Name()] = cmd
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.cmds[name]
	return cmd, ok
}

// All returns the registered commands sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Command, 0, len(r.cmds))
	for _, cmd := range r.cmds {
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Definitions returns the ApplicationCommand definitions for registration
// with Discord.
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	all := r.All()
	defs := make([]*discordgo.ApplicationCommand, 0, len(all))
	for _, cmd := range all {
		if def := cmd.SlashDefinition(); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}
