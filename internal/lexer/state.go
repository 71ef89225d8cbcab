package lexer

import "strings"

// State is the lexer state bitset, named after the EXPR_* states of Ruby's scanner.
type State uint16

// State bits.
const (
	StateBeg State = 1 << iota
	StateEnd
	StateEndArg
	StateEndFn
	StateArg
	StateCmdArg
	StateMid
	StateFName
	StateDot
	StateClass
	StateLabel
	StateLabeled
	StateFItem
)

var stateNames = []struct {
	bit  State
	name string
}{
	{StateBeg, "BEG"},
	{StateEnd, "END"},
	{StateEndArg, "ENDARG"},
	{StateEndFn, "ENDFN"},
	{StateArg, "ARG"},
	{StateCmdArg, "CMDARG"},
	{StateMid, "MID"},
	{StateFName, "FNAME"},
	{StateDot, "DOT"},
	{StateClass, "CLASS"},
	{StateLabel, "LABEL"},
	{StateLabeled, "LABELED"},
	{StateFItem, "FITEM"},
}

// Has reports whether any bit in mask is set.
func (s State) Has(mask State) bool {
	return s&mask != 0
}

// IsBeg reports whether an expression may start after this state.
func (s State) IsBeg() bool {
	return s.Has(StateBeg|StateMid|StateClass) || s == StateArg|StateLabeled
}

// IsArg reports whether the previous token was a method name that may take command arguments.
func (s State) IsArg() bool {
	return s.Has(StateArg | StateCmdArg)
}

// IsEnd reports whether an operand just ended.
func (s State) IsEnd() bool {
	return s.Has(StateEnd | StateEndArg | StateEndFn)
}

func (s State) String() string {
	if s == 0 {
		return "NONE"
	}
	parts := make([]string, 0, 2)
	for _, n := range stateNames {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
