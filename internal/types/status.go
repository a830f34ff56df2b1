package types

// letterTransitions is the authoritative transition table for letter
// notifications. A status not present as a key is terminal. The table is
// keyed by the current status; the value set lists every status the
// letter may legally move to from there.
//
// technical-failure is reachable from any in-flight state: it is the
// universal "needs a human" escalation and is itself terminal.
var letterTransitions = map[Status]map[Status]bool{
	StatusPendingVirusCheck: {
		StatusCreated:          true,
		StatusDelivered:        true, // test-key letters skip the print run
		StatusValidationFailed: true,
		StatusVirusScanFailed:  true,
		StatusTechnicalFailure: true,
	},
	StatusCreated: {
		StatusDelivered:        true,
		StatusTechnicalFailure: true,
	},
}

// CanTransition reports whether a letter in status from may legally move
// to status to. Terminal states never transition anywhere, which is what
// guarantees a notification can never regress from delivered,
// technical-failure, validation-failed or virus-scan-failed back into an
// in-flight state.
func CanTransition(from, to Status) bool {
	return letterTransitions[from][to]
}

// IsTerminal reports whether the status is an end state for a letter.
func (s Status) IsTerminal() bool {
	return len(letterTransitions[s]) == 0
}
