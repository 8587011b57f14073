package flow

import (
	"errors"
	"testing"
)

func TestConversationState_String(t *testing.T) {
	cases := []struct {
		state ConversationState
		want  string
	}{
		{StateIdle, "idle"},
		{StateWaiting, "waiting"},
		{StateSpeaking, "speaking"},
		{StateInterrupted, "interrupted"},
		{ConversationState(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("Expected '%s', got '%s'", c.want, got)
		}
	}
}

func TestStateMachine_InitialState(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Errorf("Expected initial state idle, got %s", sm.Current())
	}
}

func TestStateMachine_TransitionMatrix(t *testing.T) {
	all := []ConversationState{StateIdle, StateWaiting, StateSpeaking, StateInterrupted}
	allowed := map[ConversationState]map[ConversationState]bool{
		StateIdle:        {StateSpeaking: true, StateWaiting: true},
		StateWaiting:     {StateSpeaking: true, StateIdle: true, StateInterrupted: true},
		StateSpeaking:    {StateInterrupted: true, StateIdle: true},
		StateInterrupted: {StateIdle: true, StateWaiting: true},
	}

	for _, from := range all {
		for _, to := range all {
			sm := NewStateMachine()
			sm.Reset()
			// Walk to the source state through legal transitions
			switch from {
			case StateWaiting:
				sm.Transition(StateWaiting)
			case StateSpeaking:
				sm.Transition(StateSpeaking)
			case StateInterrupted:
				sm.Transition(StateSpeaking)
				sm.Transition(StateInterrupted)
			}
			if sm.Current() != from {
				t.Fatalf("Setup failed: expected state %s, got %s", from, sm.Current())
			}

			err := sm.Transition(to)
			if allowed[from][to] {
				if err != nil {
					t.Errorf("Expected transition %s -> %s to succeed, got %v", from, to, err)
				}
				if sm.Current() != to {
					t.Errorf("Expected state %s after transition, got %s", to, sm.Current())
				}
			} else {
				if err == nil {
					t.Errorf("Expected transition %s -> %s to fail", from, to)
				}
				if sm.Current() != from {
					t.Errorf("Expected state unchanged at %s after rejected transition, got %s", from, sm.Current())
				}
			}
		}
	}
}

func TestStateMachine_InvalidTransitionError(t *testing.T) {
	sm := NewStateMachine()

	err := sm.Transition(StateInterrupted)
	if err == nil {
		t.Fatal("Expected error for idle -> interrupted")
	}

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("Expected InvalidTransitionError, got %T", err)
	}
	if transErr.From != StateIdle {
		t.Errorf("Expected From idle, got %s", transErr.From)
	}
	if transErr.To != StateInterrupted {
		t.Errorf("Expected To interrupted, got %s", transErr.To)
	}
}

func TestStateMachine_SelfTransitionRejected(t *testing.T) {
	sm := NewStateMachine()

	if err := sm.Transition(StateIdle); err == nil {
		t.Error("Expected idle -> idle to fail")
	}
	if sm.Current() != StateIdle {
		t.Errorf("Expected state unchanged at idle, got %s", sm.Current())
	}
}

func TestStateMachine_ListenerNotified(t *testing.T) {
	sm := NewStateMachine()

	var gotFrom, gotTo ConversationState
	calls := 0
	sm.Subscribe(func(from, to ConversationState) {
		gotFrom = from
		gotTo = to
		calls++
	})

	if err := sm.Transition(StateWaiting); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("Expected 1 listener call, got %d", calls)
	}
	if gotFrom != StateIdle {
		t.Errorf("Expected from idle, got %s", gotFrom)
	}
	if gotTo != StateWaiting {
		t.Errorf("Expected to waiting, got %s", gotTo)
	}
}

func TestStateMachine_ListenerNotNotifiedOnRejection(t *testing.T) {
	sm := NewStateMachine()

	calls := 0
	sm.Subscribe(func(from, to ConversationState) {
		calls++
	})

	if err := sm.Transition(StateInterrupted); err == nil {
		t.Fatal("Expected transition to fail")
	}
	if calls != 0 {
		t.Errorf("Expected 0 listener calls after rejected transition, got %d", calls)
	}
}

func TestStateMachine_ListenersInSubscriptionOrder(t *testing.T) {
	sm := NewStateMachine()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		sm.Subscribe(func(from, to ConversationState) {
			order = append(order, i)
		})
	}

	if err := sm.Transition(StateWaiting); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("Expected 3 listener calls, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("Expected listener %d at position %d, got %d", i, i, got)
		}
	}
}

func TestStateMachine_Unsubscribe(t *testing.T) {
	sm := NewStateMachine()

	calls := 0
	unsubscribe := sm.Subscribe(func(from, to ConversationState) {
		calls++
	})

	if err := sm.Transition(StateWaiting); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("Expected 1 call before unsubscribe, got %d", calls)
	}

	unsubscribe()

	if err := sm.Transition(StateSpeaking); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no calls after unsubscribe, got %d", calls)
	}

	// Second unsubscribe is a no-op
	unsubscribe()
}

func TestStateMachine_ListenerPanicIsolated(t *testing.T) {
	sm := NewStateMachine()

	sm.Subscribe(func(from, to ConversationState) {
		panic("listener failure")
	})

	called := false
	sm.Subscribe(func(from, to ConversationState) {
		called = true
	})

	if err := sm.Transition(StateWaiting); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}

	if !called {
		t.Error("Expected second listener to run after first panicked")
	}
	if sm.Current() != StateWaiting {
		t.Errorf("Expected state waiting after listener panic, got %s", sm.Current())
	}
}

func TestStateMachine_Reset(t *testing.T) {
	sm := NewStateMachine()

	calls := 0
	sm.Subscribe(func(from, to ConversationState) {
		calls++
	})

	if err := sm.Transition(StateSpeaking); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if err := sm.Transition(StateInterrupted); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("Expected 2 calls, got %d", calls)
	}

	sm.Reset()

	if sm.Current() != StateIdle {
		t.Errorf("Expected idle after reset, got %s", sm.Current())
	}
	// Reset bypasses listeners
	if calls != 2 {
		t.Errorf("Expected no listener calls from reset, got %d total", calls)
	}
}

func TestStateMachine_ResetFromAnyState(t *testing.T) {
	// Reset works even from states with no legal path to idle in one hop
	sm := NewStateMachine()
	if err := sm.Transition(StateWaiting); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}
	if err := sm.Transition(StateInterrupted); err != nil {
		t.Fatalf("Transition() failed: %v", err)
	}

	sm.Reset()
	if sm.Current() != StateIdle {
		t.Errorf("Expected idle after reset, got %s", sm.Current())
	}

	// Machine is usable again after reset
	if err := sm.Transition(StateWaiting); err != nil {
		t.Errorf("Expected transition after reset to succeed, got %v", err)
	}
}
