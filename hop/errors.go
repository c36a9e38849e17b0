package hop

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Error markers. Use errors.Is to classify a compilation failure.
var (
	// arity mismatch, missing named parameter, no lowering rule
	ErrStructural = errors.New("structural error")

	// a parameter that selects the physical strategy is not a literal
	ErrLiteralRequired = errors.New("literal required")
)

func structuralError(n *Node, format string, args ...interface{}) error {
	err := errors.Newf("hop %d (%s): %s",
		redact.Safe(int(n.ID)),
		redact.Safe(n.Op.String()),
		fmt.Sprintf(format, args...),
	)
	return errors.Mark(err, ErrStructural)
}

func literalRequiredError(n *Node, param string) error {
	err := errors.Newf("hop %d (%s): parameter %q must be a literal argument",
		redact.Safe(int(n.ID)),
		redact.Safe(n.Op.String()),
		redact.Safe(param),
	)
	return errors.Mark(err, ErrLiteralRequired)
}
