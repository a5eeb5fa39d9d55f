// Package config implements the typed configuration dictionary consumed by
// the server core (component A). Values are keyed by name, typed at
// insertion time as either an integer or a string, and looked up either by
// their literal name or by the enumerated Option index.
package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Option enumerates the recognized configuration parameters (§3).
type Option uint8

// Recognized options. The zero value is intentionally invalid so a missing
// Option is never silently treated as Address.
const (
	_ Option = iota
	Address
	Port
	Webroot
	NThreads
	QueueSize
	MimeFile
)

// names maps each Option to the literal name used in the config file and in
// string-keyed lookups.
var names = map[Option]string{
	Address:   "ADDRESS",
	Port:      "PORT",
	Webroot:   "WEBROOT",
	NThreads:  "NTHREADS",
	QueueSize: "QUEUE_SIZE",
	MimeFile:  "MIME_FILE",
}

// String returns the literal config-file name of o, or "" if o is not a
// recognized option.
func (o Option) String() string {
	return names[o]
}

// Sentinel errors distinguishing the three lookup failure modes named in
// §4.A. Use errors.Is to test for them.
var (
	ErrNotFound    = errors.New("config: parameter not found")
	ErrWrongType   = errors.New("config: parameter has a different type")
	ErrBadArgument = errors.New("config: bad argument")
)

type kind uint8

const (
	kindInt kind = iota
	kindString
)

type entry struct {
	kind kind
	i    int32
	s    string
}

// Store is a typed key -> value dictionary. The zero value is not usable;
// construct one with New.
type Store struct {
	entries map[string]entry
}

// New returns an empty, ready to use Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// AddInt inserts name with an integer value. It returns ErrBadArgument if
// name is empty, and an error wrapping an "already exists" message if name
// is already present (inserting an existing name is an error, per §4.A).
func (s *Store) AddInt(name string, value int32) error {
	if name == "" {
		return fmt.Errorf("%w: empty parameter name", ErrBadArgument)
	}
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("config: parameter %q already exists", name)
	}
	s.entries[name] = entry{kind: kindInt, i: value}
	return nil
}

// AddString inserts name with a string value. See AddInt for the error
// conditions.
func (s *Store) AddString(name string, value string) error {
	if name == "" {
		return fmt.Errorf("%w: empty parameter name", ErrBadArgument)
	}
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("config: parameter %q already exists", name)
	}
	s.entries[name] = entry{kind: kindString, s: value}
	return nil
}

// GetInt returns the integer value stored under name.
func (s *Store) GetInt(name string) (int32, error) {
	e, ok := s.entries[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if e.kind != kindInt {
		return 0, fmt.Errorf("%w: %q is a string", ErrWrongType, name)
	}
	return e.i, nil
}

// GetString returns the string value stored under name.
func (s *Store) GetString(name string) (string, error) {
	e, ok := s.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if e.kind != kindString {
		return "", fmt.Errorf("%w: %q is an integer", ErrWrongType, name)
	}
	return e.s, nil
}

// GetIntOption is GetInt resolved through an Option instead of a literal
// name.
func (s *Store) GetIntOption(o Option) (int32, error) {
	n := o.String()
	if n == "" {
		return 0, fmt.Errorf("%w: unrecognized option %d", ErrBadArgument, o)
	}
	return s.GetInt(n)
}

// GetStringOption is GetString resolved through an Option instead of a
// literal name.
func (s *Store) GetStringOption(o Option) (string, error) {
	n := o.String()
	if n == "" {
		return "", fmt.Errorf("%w: unrecognized option %d", ErrBadArgument, o)
	}
	return s.GetString(n)
}

// IntOrDefault returns the value of o, or def if o is absent or invalid.
// Used for NTHREADS (default 2) and QUEUE_SIZE (default 100) per §3.
func (s *Store) IntOrDefault(o Option, def int32) int32 {
	v, err := s.GetIntOption(o)
	if err != nil {
		return def
	}
	return v
}

// ParseInt32 parses s as a base-10 32-bit signed integer, failing
// explicitly (rather than silently truncating) if the value doesn't fit,
// per §4.A.
func ParseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	return int32(v), nil
}
