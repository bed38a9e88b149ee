// Package domain holds the appraisal data model: scored domain items, domain
// results with their derived score, the overall assessment, the workflow
// stage enumeration and the in-memory assessment session.
package domain
