package enums

// DeadLetterReason records why the publisher gave up on an outbox row.
type DeadLetterReason string

const (
	// DeadLetterUndecodable rows have an unknown type or a payload that no longer decodes.
	DeadLetterUndecodable DeadLetterReason = "undecodable"
	// DeadLetterUnroutable rows resolved to a topic this publisher cannot reach.
	DeadLetterUnroutable DeadLetterReason = "unroutable"
	// DeadLetterRetriesExhausted rows failed to publish on every allowed attempt.
	DeadLetterRetriesExhausted DeadLetterReason = "retries_exhausted"
)

func (r DeadLetterReason) IsValid() bool {
	switch r {
	case DeadLetterUndecodable, DeadLetterUnroutable, DeadLetterRetriesExhausted:
		return true
	}
	return false
}
