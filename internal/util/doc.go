// Package util holds small helpers shared by the mock-oauth packages that do
// not belong to a domain package.
package util
