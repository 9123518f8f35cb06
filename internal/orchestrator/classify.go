package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Bidon15/autodeploy/internal/registry"
)

const insufficientFunds = "insufficient funds"

// Policy decides how far a fatal failure reaches within a network.
type Policy string

const (
	// PolicyIndependent retires only the credential whose attempt failed.
	PolicyIndependent Policy = "independent"
	// PolicyNetworkAbort stops the network for the rest of the run on a fatal
	// failure; insufficient funds still retires only that credential.
	PolicyNetworkAbort Policy = "network-abort"
)

// ErrUnknownPolicy is returned by ParsePolicy.
var ErrUnknownPolicy = errors.New("orchestrator: unknown policy")

// ParsePolicy converts a config value to a Policy. Empty means PolicyIndependent.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyIndependent:
		return PolicyIndependent, nil
	case PolicyNetworkAbort:
		return PolicyNetworkAbort, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: %s, %s)", ErrUnknownPolicy, s, PolicyIndependent, PolicyNetworkAbort)
	}
}

// Classify maps a deploy error to an attempt outcome. A nil error is a success;
// anything mentioning insufficient funds (any case) is retryable, the rest is fatal.
func Classify(err error) registry.Outcome {
	if err == nil {
		return registry.OutcomeSuccess
	}
	if strings.Contains(strings.ToLower(err.Error()), insufficientFunds) {
		return registry.OutcomeRetryable
	}
	return registry.OutcomeFatal
}
