// Package dedupe scores a release candidate against previously uploaded
// releases. Matching is read-only; callers decide what to do with a
// likely duplicate.
package dedupe
