package personality

import "math/rand"

const DefaultGreeting = "Hey everyone! Ready for some memes?"

// RandomChatMessage picks a canned line for trigger, falling back to the
// personality's general lines and then to DefaultGreeting. It never returns "".
func RandomChatMessage(p *Personality, trigger Trigger) string {
	if p == nil {
		return DefaultGreeting
	}
	if lines := nonBlank(p.ChatTemplates[trigger]); len(lines) > 0 {
		return lines[rand.Intn(len(lines))]
	}
	if lines := nonBlank(p.ChatTemplates[TriggerGeneral]); len(lines) > 0 {
		return lines[rand.Intn(len(lines))]
	}
	return DefaultGreeting
}
