package domain

import (
	"fmt"
	"strings"
)

// Status is the execution state of an assignment.
type Status string

const (
	StatusAssigned Status = "assigned"
	StatusExecuted Status = "executed"
)

// ParseStatus accepts the English values and the Korean labels used by the
// spreadsheets, with or without the leading emoji.
func ParseStatus(s string) (Status, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimLeft(v, "📋✅ ")
	switch strings.ToLower(v) {
	case "assigned", "배정완료", "배정":
		return StatusAssigned, nil
	case "executed", "completed", "done", "집행완료", "실집행완료", "집행":
		return StatusExecuted, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Label is the Korean display label.
func (s Status) Label() string {
	if s == StatusExecuted {
		return "✅ 집행완료"
	}
	return "📋 배정완료"
}
