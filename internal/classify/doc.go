// Package classify defines pet classification results and the Classifier
// interface used by the scan pipeline, plus an HTTP backend for remote
// vision services.
//
// Classifiers report the single best label for an image, mapped onto a small
// closed set of categories (dog, cat, other). A failed classification is
// reported as an error; callers treat it the same as "no pet".
package classify
