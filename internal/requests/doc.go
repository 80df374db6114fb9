// Package requests matches a release candidate against a destination's
// open requests, honoring each request's format and media allowances.
package requests
