// Package signature computes structural cache keys for expression trees.
package signature
