package queue

import "errors"

// ErrPoison marks a message that can never be processed and must not be
// redelivered.
var ErrPoison = errors.New("poison message")

func IsPoison(err error) bool {
	return errors.Is(err, ErrPoison)
}
