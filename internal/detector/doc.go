// Package detector inspects fetched resources for security exposures.
//
// Every check implements Detector and is registered in a fixed order by
// Builtin. A Pipeline runs the detectors enabled for a target against each
// fetch result and concatenates their findings. Detectors are independent:
// an error or panic in one is recovered, logged and counted, and the others
// still run.
//
// Detectors also declare what they want to see. A Prober contributes fixed
// paths the crawler requests once per host, and a FailureInspector also runs
// on failed fetches such as TLS errors or 5xx responses.
//
// Evidence never contains a complete secret: matched values are cut to a
// short prefix and marked [REDACTED].
package detector
