package chains

// ChannelSource is an in-process event source. Producers (webhook
// receivers, chain watchers) publish into it and the alert pipeline
// drains it.
type ChannelSource struct {
	ch chan Event
}

func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSource{ch: make(chan Event, buffer)}
}

func (s *ChannelSource) Events() <-chan Event { return s.ch }

// Publish hands an event to the pipeline. It reports false when the
// buffer is full; a slow consumer drops events rather than blocking
// the producer.
func (s *ChannelSource) Publish(ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Close ends the stream; the pipeline drains and stops.
func (s *ChannelSource) Close() { close(s.ch) }
