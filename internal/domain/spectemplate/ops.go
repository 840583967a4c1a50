package spectemplate

import (
	"fmt"

	"setflow/internal/core/apperror"
)

// Op is one editor action in a batch sent by a client.
type Op struct {
	Op        string    `json:"op"` // add, remove, edit, move, reorder, reset
	Index     int       `json:"index,omitempty"`
	To        int       `json:"to,omitempty"`
	Attr      Attr      `json:"attr,omitempty"`
	Value     any       `json:"value,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Confirm   bool      `json:"confirm,omitempty"`
}

// Apply runs ops in order and stops at the first failure, reporting its
// position. Earlier ops stay applied to the editor.
func (e *Editor) Apply(ops []Op) error {
	for n, op := range ops {
		var err error
		switch op.Op {
		case "add":
			e.AddField()
		case "remove":
			err = e.RemoveField(op.Index)
		case "edit":
			err = e.EditField(op.Index, op.Attr, op.Value)
		case "move":
			err = e.MoveField(op.Index, op.Direction)
		case "reorder":
			err = e.Reorder(op.Index, op.To)
		case "reset":
			err = e.ResetToDefault(op.Confirm)
		default:
			err = fmt.Errorf("unknown op %q", op.Op)
		}
		if err != nil {
			return opError(n, op, err)
		}
	}
	return nil
}

func opError(n int, op Op, err error) error {
	if ae, ok := apperror.AsAppError(err); ok {
		return ae.WithDetail("op", n)
	}
	return apperror.NewValidation(err.Error()).
		WithDetail("op", n).
		WithDetail("name", op.Op).
		WithCause(err)
}
