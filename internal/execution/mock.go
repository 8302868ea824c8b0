package execution

import (
	"context"
	"strings"
	"sync"
)

// MockEngine is a simple scripted implementation for testing. Responses are
// registered against command prefixes; every call is recorded.
type MockEngine struct {
	mu    sync.Mutex
	calls []Request
	stubs []stub

	// InitErr and ExecErr, when set, are returned by Initialize/Execute to
	// simulate infrastructure failures.
	InitErr error
	ExecErr error
}

type stub struct {
	prefix string
	resp   Response
}

// NewMockEngine creates a new mock engine that succeeds with empty output
// for any command.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Stub registers a response for commands whose argv (joined with spaces)
// starts with prefix. Later registrations win over earlier ones.
func (m *MockEngine) Stub(prefix string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{prefix: prefix, resp: resp})
}

// Calls returns a copy of every request seen so far.
func (m *MockEngine) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CommandLines returns each recorded command as a single joined string, in
// call order. Convenient for asserting on sequences.
func (m *MockEngine) CommandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.calls))
	for i, c := range m.calls {
		lines[i] = strings.Join(c.Argv, " ")
	}
	return lines
}

func (m *MockEngine) Initialize(ctx context.Context) error {
	return m.InitErr
}

func (m *MockEngine) Execute(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	execErr := m.ExecErr
	line := strings.Join(req.Argv, " ")
	var resp *Response
	for i := len(m.stubs) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, m.stubs[i].prefix) {
			r := m.stubs[i].resp
			resp = &r
			break
		}
	}
	m.mu.Unlock()

	if execErr != nil {
		return nil, execErr
	}
	if resp != nil {
		resp.Success = resp.ExitCode == 0 && resp.ErrorMsg == ""
		return resp, nil
	}
	return &Response{Success: true}, nil
}

func (m *MockEngine) Shutdown(ctx context.Context) error {
	return nil
}
