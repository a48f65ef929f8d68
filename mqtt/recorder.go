// recorder.go - In-process Publisher that records every publish

package mqtt

import (
	"sync"
)

// Message is one publish captured by a Recorder.
type Message struct {
	Topic   string
	Payload string
}

// Recorder is an in-process Publisher for tests. Set Err to make every
// publish fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Publish records topic and the encoded payload.
func (r *Recorder) Publish(topic string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	body, err := Encode(payload)
	if err != nil {
		return err
	}
	r.messages = append(r.messages, Message{Topic: topic, Payload: string(body)})
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent publish, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
