package negotiate

import (
	"context"
	"errors"
	"fmt"
)

type mockCred struct{ id int }

type mockCtx struct{ id int }

// mockProvider replays scripted InitializeContext results and tracks every
// handle it hands out so tests can assert on leaks and double frees.
type mockProvider struct {
	acquireErr error
	steps      []mockStep

	acquired  int
	inits     int
	deleted   int
	freed     int
	liveCreds map[*mockCred]bool
	liveCtxs  map[*mockCtx]bool

	doubleFree bool
	requests   []InitRequest
	deleteErr  error
}

type mockStep struct {
	status     Status
	output     [][]byte
	code       uint32
	err        error
	newContext bool // return a context even on failure
}

func newMockProvider(steps ...mockStep) *mockProvider {
	return &mockProvider{
		steps:     steps,
		liveCreds: make(map[*mockCred]bool),
		liveCtxs:  make(map[*mockCtx]bool),
	}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) AcquireCredentials(_ context.Context, pkg string) (CredentialHandle, error) {
	if pkg != PackageNegotiate {
		return nil, fmt.Errorf("unexpected package %q", pkg)
	}
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	m.acquired++
	c := &mockCred{id: m.acquired}
	m.liveCreds[c] = true
	return c, nil
}

func (m *mockProvider) InitializeContext(_ context.Context, req InitRequest) (InitResult, error) {
	m.requests = append(m.requests, req)
	if m.inits >= len(m.steps) {
		return InitResult{}, errors.New("mock: no more scripted steps")
	}
	step := m.steps[m.inits]
	m.inits++

	if _, ok := req.Credential.(*mockCred); !ok {
		return InitResult{}, errors.New("mock: foreign credential handle")
	}

	sc, _ := req.Context.(*mockCtx)
	if sc == nil && ((step.err == nil && step.status != StatusFailed) || step.newContext) {
		sc = &mockCtx{id: m.inits}
		m.liveCtxs[sc] = true
	}

	res := InitResult{Status: step.status, Output: step.output, Code: step.code}
	if sc != nil {
		res.Context = sc
	}
	return res, step.err
}

func (m *mockProvider) DeleteContext(sc ContextHandle) error {
	c := sc.(*mockCtx)
	if !m.liveCtxs[c] {
		m.doubleFree = true
	}
	delete(m.liveCtxs, c)
	m.deleted++
	return m.deleteErr
}

func (m *mockProvider) FreeCredentials(cred CredentialHandle) error {
	c := cred.(*mockCred)
	if !m.liveCreds[c] {
		m.doubleFree = true
	}
	delete(m.liveCreds, c)
	m.freed++
	return nil
}

func (m *mockProvider) live() int {
	return len(m.liveCreds) + len(m.liveCtxs)
}

func continueStep(token string) mockStep {
	return mockStep{status: StatusContinueNeeded, output: [][]byte{[]byte(token)}}
}

func completeStep(tokens ...string) mockStep {
	s := mockStep{status: StatusComplete}
	for _, t := range tokens {
		s.output = append(s.output, []byte(t))
	}
	return s
}
