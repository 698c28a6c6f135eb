package turn

import "github.com/google/uuid"

// newMessageID allocates a fresh message_id for one character's reply
// within a turn.
func newMessageID() string {
	return uuid.NewString()
}
