package loaderr

// hints maps an error code to a recovery suggestion shown in batch reports.
var hints = map[string]string{
	CodeSchemaCycleViolation:  "change the listed properties to a cardinality of 0-1 or 0-n",
	CodeUnstashableCycle:      "the records disagree with the schema; check the cardinalities of the listed property",
	CodeTransientNetwork:      "the backend was unreachable; rerun the batch",
	CodeTerminalAPI:           "fix the record data and rerun the batch",
	CodeBlockedByDependency:   "fix the record it depends on and rerun the batch",
	CodeRetriesExhausted:      "the backend stayed unavailable; rerun the batch once it is healthy",
	CodeDuplicateIdentifier:   "two records share a local id; make the ids unique",
	CodeInvalidInput:          "fix the input file",
	CodeCheckpointUnavailable: "check that the checkpoint store is reachable and rerun the batch",
	CodeCancelled:             "the run was cancelled; rerun the batch to continue",
}

// HintFor returns the recovery hint for code, or "" if none is known.
func HintFor(code string) string {
	return hints[code]
}
