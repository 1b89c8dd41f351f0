package btree

import "errors"

var (
	// ErrKeyExists is returned by Put when the key is already present.
	ErrKeyExists = errors.New("keva: key already exists")

	// ErrConfigMismatch is returned when opening an existing database file
	// whose header disagrees with the Config passed to the constructor.
	ErrConfigMismatch = errors.New("keva: database file configuration does not match the requested options")

	// ErrNotImplemented is returned by Remove. The engine this module is
	// modeled on declares remove but never implements it; this module
	// mirrors that gap deliberately rather than inventing deletion
	// semantics that were never specified.
	ErrNotImplemented = errors.New("keva: remove is not implemented")
)
