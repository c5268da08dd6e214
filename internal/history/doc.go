// Package history stores bench results in a bbolt file so runs can be
// compared across invocations.
package history
