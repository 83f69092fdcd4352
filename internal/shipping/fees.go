package shipping

import "errors"

// ErrUnknownMethod is returned when the requested shipping method is not offered.
var ErrUnknownMethod = errors.New("unknown shipping method")

// Method identifies a shipping service level.
type Method string

const (
	MethodStandard Method = "standard"
	MethodExpress  Method = "express"
)

// Default flat fees in minor currency units.
const (
	DefaultStandardFee int64 = 25_000
	DefaultExpressFee  int64 = 35_000
)

// Quoter resolves the flat shipping fee for a method. A zero value serves the
// default fee table.
type Quoter struct {
	StandardFee int64
	ExpressFee  int64
}

// Fee returns the flat fee for the given method.
func (q Quoter) Fee(method Method) (int64, error) {
	switch method {
	case MethodStandard:
		if q.StandardFee > 0 {
			return q.StandardFee, nil
		}
		return DefaultStandardFee, nil
	case MethodExpress:
		if q.ExpressFee > 0 {
			return q.ExpressFee, nil
		}
		return DefaultExpressFee, nil
	default:
		return 0, ErrUnknownMethod
	}
}
