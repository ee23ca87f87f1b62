// Package testutil provides fake resources and plugins for testing pools and
// control algorithms without real governed components.
package testutil
