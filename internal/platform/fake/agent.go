package fake

import (
	"context"
	"sync"

	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/pkg/protocol"
)

// Call is one request seen by Agent.
type Call struct {
	Type    string
	Payload any
}

// Agent is a scripted platform.AgentChannel. Responses maps a request type
// to the reply; unscripted types answer "ok".
type Agent struct {
	mu        sync.Mutex
	Calls     []Call
	Responses map[string]func(payload any) (protocol.Envelope, error)
	Err       error
}

func NewAgent() *Agent {
	return &Agent{Responses: make(map[string]func(any) (protocol.Envelope, error))}
}

// Reply scripts a fixed response payload for msgType.
func (a *Agent) Reply(msgType, respType string, payload any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Responses[msgType] = func(any) (protocol.Envelope, error) {
		return protocol.NewEnvelope(respType, "", payload)
	}
}

// Fail scripts an error for msgType.
func (a *Agent) Fail(msgType string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Responses[msgType] = func(any) (protocol.Envelope, error) {
		return protocol.Envelope{}, err
	}
}

func (a *Agent) Call(ctx context.Context, msgType string, payload any) (protocol.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Envelope{}, err
	}
	a.mu.Lock()
	a.Calls = append(a.Calls, Call{Type: msgType, Payload: payload})
	fn, ok := a.Responses[msgType]
	err := a.Err
	a.mu.Unlock()

	if err != nil {
		return protocol.Envelope{}, err
	}
	if ok {
		return fn(payload)
	}
	return protocol.NewEnvelope(protocol.TypeOK, "", nil)
}

func (a *Agent) SocketPath() string { return "fake.sock" }

// Last returns the most recent call.
func (a *Agent) Last() (Call, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Calls) == 0 {
		return Call{}, false
	}
	return a.Calls[len(a.Calls)-1], true
}

var _ platform.AgentChannel = (*Agent)(nil)
