// README: Per-user preferences that shape recommendations and presence.
package preferences

// DefaultBufferMinutes applies when the user configured no reminder offset.
const DefaultBufferMinutes = 10

type Preferences struct {
	ReminderOffsets []int `json:"reminder_offsets"` // minutes, first entry is the primary reminder
	PresenceEnabled bool  `json:"presence_enabled"`
}

// BufferMinutes is the primary reminder offset when positive, else DefaultBufferMinutes.
func (p Preferences) BufferMinutes() int {
	if len(p.ReminderOffsets) > 0 && p.ReminderOffsets[0] > 0 {
		return p.ReminderOffsets[0]
	}
	return DefaultBufferMinutes
}
