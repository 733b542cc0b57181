// Package testutil provides fixtures, a controllable clock and HTTP request
// helpers shared by the package tests.
package testutil
