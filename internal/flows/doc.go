// Package flows holds the validate, policy, and refresh state machines as
// plain functions over dependency structs. The root package injects its
// stores, codec, and error matchers; keeping the orchestration here keeps it
// testable with fakes and free of import cycles.
package flows
