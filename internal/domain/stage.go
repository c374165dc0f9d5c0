package domain

import "strings"

type Stage string

const (
	StagePreApproval  Stage = "PRE_APPROVAL"
	StageExecution    Stage = "EXECUTION"
	StagePostApproval Stage = "POST_APPROVAL"
	StageClosed       Stage = "CLOSED"
	StageFinalPDF     Stage = "FINAL_PDF"
	StageVoided       Stage = "VOIDED"
)

// forwardOrder is the total order used for forward and backward semantics.
// Voided sits outside it.
var forwardOrder = []Stage{
	StagePreApproval,
	StageExecution,
	StagePostApproval,
	StageClosed,
	StageFinalPDF,
}

// Rank is the 1-based position of s in the forward order, 0 for Voided or
// unknown stages.
func (s Stage) Rank() int {
	for i, st := range forwardOrder {
		if st == s {
			return i + 1
		}
	}
	return 0
}

func (s Stage) Valid() bool { return s == StageVoided || s.Rank() > 0 }

// Next returns the immediate forward successor.
func (s Stage) Next() (Stage, bool) {
	r := s.Rank()
	if r == 0 || r == len(forwardOrder) {
		return "", false
	}
	return forwardOrder[r], true
}

func (s Stage) Before(other Stage) bool {
	return s.Rank() > 0 && other.Rank() > 0 && s.Rank() < other.Rank()
}

// Group returns the signing group gating forward exit from s.
func (s Stage) Group() (Group, bool) {
	switch s {
	case StagePreApproval:
		return GroupPreApproval, true
	case StageExecution:
		return GroupExecution, true
	case StagePostApproval:
		return GroupPostApproval, true
	}
	return "", false
}

func ParseStage(v string) (Stage, bool) {
	s := Stage(strings.ToUpper(strings.TrimSpace(v)))
	return s, s.Valid()
}

type Direction string

const (
	Forward  Direction = "FORWARD"
	Backward Direction = "BACKWARD"
)

func ParseDirection(v string) (Direction, bool) {
	d := Direction(strings.ToUpper(strings.TrimSpace(v)))
	return d, d == Forward || d == Backward
}
