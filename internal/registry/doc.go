// Package registry manages Docker registry authentication for update runs:
// loading operator-provided credentials and opening and closing login
// sessions around the image refresh.
package registry
