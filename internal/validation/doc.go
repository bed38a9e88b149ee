// Package validation turns decoded model output into the typed appraisal
// values. Validators accept whatever json.Unmarshal produced for an any
// target and either return normalized values or a *errors.ValidationError
// naming the offending field.
//
// Model output is loosely structured, so the validators tolerate the common
// deviations (a single object instead of an array, an array wrapped in an
// object, a null section) while still rejecting out-of-range scores.
package validation
