// Package cond implements the conditional-execution state machine shared
// by A32's per-instruction condition field and Thumb's IT blocks (spec
// §4.2 "Conditional execution (A32/Thumb IT)"). It has no wazero analog:
// wasm has no predicated execution.
package cond

// State is one of the four conditional-translation states.
type State byte

const (
	// None: no conditional region is open.
	None State = iota
	// Translating: collecting instructions guarded by the same condition.
	Translating
	// Trailing: unconditional instructions following a conditional prefix
	// in the same block (e.g. code after an IT block, still same block).
	Trailing
	// Break: the current instruction forces block termination.
	Break
)

// Machine tracks the open conditional region, if any, for one block.
type Machine struct {
	state State
	code  uint8 // ARM condition code of the open region, valid when state != None
}

// Reset returns the machine to None, called once per new block.
func (m *Machine) Reset() { m.state, m.code = None, 0 }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Code returns the condition code of the open region (valid only when
// State() != None).
func (m *Machine) Code() uint8 { return m.code }

// Open begins a conditional region with condition code c. Must be called
// from State() == None.
func (m *Machine) Open(c uint8) {
	m.state = Translating
	m.code = c
}

// Next advances the machine for the next guest instruction, given whether
// that instruction itself carries condition code c (present=true) matching
// the open region. It returns the resulting state to drive the translator:
// Translating/Trailing mean "continue the block", Break means "stop now".
func (m *Machine) Next(present bool, c uint8) State {
	switch m.state {
	case None:
		return None
	case Translating, Trailing:
		if !present {
			m.state = Trailing
			return Trailing
		}
		if c != m.code {
			m.state = Break
			return Break
		}
		return m.state
	default:
		return Break
	}
}

// Close ends the conditional region (e.g. at end of an IT block's scope),
// returning to None so a following instruction starts fresh.
func (m *Machine) Close() { m.Reset() }
