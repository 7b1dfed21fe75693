package solver

import "fmt"

// Flag is the status returned by Session.Advance.
type Flag int

const (
	Success         Flag = 0
	TstopReturn     Flag = 1
	TooMuchWork     Flag = -1
	TooMuchAccuracy Flag = -2
	ErrTestFailure  Flag = -3
	ConvFailure     Flag = -4
	RHSFailure      Flag = -8
	IllInput        Flag = -22
	BadTout         Flag = -25
	Canceled        Flag = -99
)

// OK reports whether the flag is a successful return.
func (f Flag) OK() bool { return f == Success || f == TstopReturn }

func (f Flag) String() string {
	switch f {
	case Success:
		return "success"
	case TstopReturn:
		return "tstop_return"
	case TooMuchWork:
		return "too_much_work"
	case TooMuchAccuracy:
		return "too_much_accuracy"
	case ErrTestFailure:
		return "err_test_failure"
	case ConvFailure:
		return "conv_failure"
	case RHSFailure:
		return "rhs_failure"
	case IllInput:
		return "ill_input"
	case BadTout:
		return "bad_tout"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}
