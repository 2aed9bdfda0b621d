// Package domain holds the core business entities and error kinds for
// repovec. It has no dependencies on adapters or infrastructure.
package domain
