package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrMalformedResult marks a response whose shape or length is not what the caller expects.
var ErrMalformedResult = errors.New("malformed rpc result")

// Revert reasons the AMM uses when a value cannot be derived yet.
const (
	RevertNearMaturity = "Option is too close to maturity"
	RevertStalePrice   = "Received stale price"
	RevertBlackScholes = "Black scholes function failed"
)

var softReasons = []string{
	RevertNearMaturity,
	RevertStalePrice,
	RevertBlackScholes,
}

// Kind separates expected "no value" reverts from real failures.
type Kind int

const (
	Hard Kind = iota
	SoftNoValue
)

// Classification is the result of Classify.
type Classification struct {
	Kind   Kind
	Reason string
	Detail string
}

// Soft reports whether the error means the value is legitimately undefined.
func (c Classification) Soft() bool {
	return c.Kind == SoftNoValue
}

// Classify matches the upstream error text, including JSON-RPC error data,
// against the known soft revert reasons.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: Hard}
	}
	detail := errorText(err)
	for _, reason := range softReasons {
		if strings.Contains(detail, reason) {
			return Classification{Kind: SoftNoValue, Reason: reason, Detail: detail}
		}
	}
	return Classification{Kind: Hard, Detail: detail}
}

func errorText(err error) string {
	text := err.Error()
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data := dataErr.ErrorData(); data != nil {
			text = fmt.Sprintf("%s: %v", text, data)
		}
	}
	return text
}
